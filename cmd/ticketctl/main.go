package main

import (
	"os"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

func main() {
	log.Init(logrus.WarnLevel)

	app := newApp(os.Stdout, redisRemote)
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
