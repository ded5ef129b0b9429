// mealctl 離線評分與營養資料維護工具
package main

import (
	"fmt"
	"os"

	"meal-analyzer/internal/pkg/common"
)

func main() {
	defer common.Sync()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
