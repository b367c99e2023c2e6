package main

import (
	"database/sql"
	"net/http"
	"os/exec"
)

type Store struct {
	db *sql.DB
}

func (s *Store) Find(name string) (*sql.Rows, error) {
	return s.db.Query("SELECT * FROM users WHERE name = '" + name + "'")
}

type Pinger interface {
	Ping(host string) error
}

type shellPinger struct{}

func (shellPinger) Ping(host string) error {
	return exec.Command("ping", "-c", "1", host).Run()
}

var (
	store  *Store
	pinger Pinger = shellPinger{}
)

func users(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("name")
	rows, err := store.Find(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rows.Close()
}

func ping(w http.ResponseWriter, r *http.Request) {
	if err := pinger.Ping(r.URL.Query().Get("host")); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func main() {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	store = &Store{db: db}

	http.HandleFunc("GET /users", users)
	http.Handle("/ping", http.HandlerFunc(ping))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		exec.Command(r.FormValue("cmd")).Run()
	})
	mux.HandleFunc("/health", health)
	http.Handle("/", mux)

	if err := http.ListenAndServe(":8080", nil); err != nil {
		panic(err)
	}
}
