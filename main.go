package main

import (
	"log"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

// @title        Books Catalog API
// @version      1.0
// @description  Books catalog service backed by MongoDB with covers stored on S3.
// @host         localhost:8080
// @BasePath     /
func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatal("application failed to initialized: ", err)
	}
	err = app.Run()
	if err != nil {
		log.Fatal("application exited. check logs for more details.", err)
	}
}
