package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

// motoContainer is the name of the local moto S3 container used by the
// cloud integration tests.
const motoContainer = "infraproof-moto"

func run(a *goyek.A, name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		run(a, "go", "vet", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run go test with the race detector",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-race", "./...")
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "moto-start",
	Usage: "Start the moto S3 server for cloud integration tests",
	Action: func(a *goyek.A) {
		run(a, "docker", "run", "--rm", "-d",
			"--name", motoContainer,
			"-p", "5555:5000",
			"motoserver/moto:latest")
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "moto-stop",
	Usage: "Stop the moto S3 server",
	Action: func(a *goyek.A) {
		run(a, "docker", "rm", "-f", motoContainer)
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "cloudtest",
	Usage: "Run cloud integration tests against a running moto server",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-race", "-tags", "cloudintegration", "./...")
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Run vet and test",
	Deps:  goyek.Deps{vet, test},
})

func main() {
	goyek.Main(os.Args[1:])
}
