package analyzer

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

var testdata = analysistest.TestData()

func TestRoutes(t *testing.T) {
	analysistest.Run(t, testdata, Analyzer, "a")
}

func TestNoRoutes(t *testing.T) {
	// main without routes and without a source rule for os.Getenv.
	analysistest.Run(t, testdata, Analyzer, "b")
}
