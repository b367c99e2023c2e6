// Command taintflow-vet runs the taint check as a go vet style analyzer,
// one package at a time.
//
//	taintflow-vet [-rules file.yaml] ./...
package main

import (
	"github.com/picatz/taintflow/analyzer"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}
