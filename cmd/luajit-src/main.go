package main

import "github.com/goplus/luajit-src/cmd/luajit-src/internal"

func main() {
	internal.Execute()
}
