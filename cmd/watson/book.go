package main

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dragonhatcher/watson/internal/orchestrator"
	"github.com/dragonhatcher/watson/internal/report"
	"github.com/dragonhatcher/watson/internal/source"
)

func newBookCmd() *cobra.Command {
	var configPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Build and serve an HTML view of the project's proofs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(configPath, addr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to watson.toml (default: search upward from cwd)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:4242", "address to serve the book on")
	return cmd
}

var bookTemplate = template.Must(template.New("book").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Watson proof book</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.axiom { color: #555; }
.correct { color: #1a7f37; }
.todo { color: #9a6700; }
.errored { color: #cf222e; }
</style>
</head>
<body>
<h1>Proof book</h1>
<p>{{.Axioms}} axiom, {{.Correct}} correct, {{.Todo}} todo, {{.Errored}} errored</p>
<table>
<tr><th>Theorem</th><th>Status</th><th>Detail</th></tr>
{{range .Theorems}}<tr><td>{{.Name}}</td><td class="{{.Status}}">{{.Status}}</td><td>{{.Message}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func runBook(configPath, addr string) error {
	m, projectDir, err := loadManifest(configPath)
	if err != nil {
		return err
	}
	rootDir := filepath.Join(projectDir, m.Root)

	render := func() (report.Summary, error) {
		cache := source.NewCache(rootDir, m.Ext)
		if _, err := cache.Load(m.Entry, source.OriginRoot, source.Span{}); err != nil {
			return report.Summary{}, err
		}
		res, err := orchestrator.Run(cache, m.Entry)
		if err != nil {
			return report.Summary{}, err
		}
		return report.Build(res.Certs, res.CheckOrder), nil
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		summary, err := render()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = bookTemplate.Execute(w, summary)
	})

	fmt.Printf("serving the proof book on http://%s (ctrl-c to stop)\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		return &CLIError{Type: "io", Message: err.Error()}
	}
	return nil
}
