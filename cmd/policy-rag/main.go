package main

// @title           Policy RAG API
// @version         1.0
// @description     Answers HR policy questions from a local policy corpus by retrieving the most relevant policy excerpts and composing an answer from them.

// @contact.name   Custodia Labs
// @contact.url    https://github.com/custodia-labs/policy-rag/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

import (
	"fmt"
	"os"

	"github.com/custodia-labs/policy-rag/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
