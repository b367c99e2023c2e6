package main

import (
	"database/sql"
	"html"
	"net/http"
	"os/exec"
)

var db *sql.DB

func search(w http.ResponseWriter, r *http.Request) {
	lookup(r.FormValue("q"))
}

func lookup(name string) {
	db.Query("SELECT * FROM users WHERE name = '" + name + "'") // want `potential SQLi: HIGH from a.search reaches database/sql.DB.Query`
}

func constant(w http.ResponseWriter, r *http.Request) {
	db.Query("SELECT 1")
}

func run(w http.ResponseWriter, r *http.Request) {
	exec.Command(r.FormValue("cmd")).Run() // want `potential RCE: CRITICAL from a.run reaches os/exec.Command`
}

func escaped(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(html.EscapeString(r.FormValue("name"))))
}

func main() {
	http.HandleFunc("/search", search)
	http.HandleFunc("/constant", constant)
	http.HandleFunc("POST /run", run)
	http.HandleFunc("/escaped", escaped)
}
