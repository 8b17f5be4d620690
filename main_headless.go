//go:build !desktop

package main

import (
	"flag"
	"fmt"
	"os"
)

// Without the desktop tag the binary compiles a graph script, or the
// starter graph, and prints the shader module the canvas would receive.
func main() {
	cfgPath := flag.String("config", "", "HCL config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	app := NewApp(cfg)

	if path := flag.Arg(0); path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		res := app.Evaluate(string(src))
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "line %d: %s\n", e.Line, e.Message)
		}
		if len(res.Errors) > 0 {
			os.Exit(1)
		}
	}

	st := app.State()
	if st.Compile.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", st.Compile.Error)
		os.Exit(1)
	}
	fmt.Println(app.Shader())
}
