package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/meetscribe/meetscribe/server/meetingservice"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	if err := meetingservice.Run(*buildTarget); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
