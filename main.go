package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ninja0404/whale-signal/internal/app"
)

func main() {
	// 本地开发时从 .env 读取 CONFIG_TYPE、MSE_* 等变量，文件不存在时忽略
	_ = godotenv.Load()

	application := app.New()

	if err := application.Start("./config/config.yaml"); err != nil {
		fmt.Printf("应用启动失败: %v\n", err)
		os.Exit(1)
	}
}
