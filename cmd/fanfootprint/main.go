// Command fanfootprint はスタジアム訪問記録APIサーバーを起動する。
//
// 使い方:
//
//	fanfootprint [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/fanfootprint/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
