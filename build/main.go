package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

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
	Usage: "Run unit tests (integration tests needing git, docker or network are skipped)",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-short", "./...")
	},
})

var integration = goyek.Define(goyek.Task{
	Name:  "integration",
	Usage: "Run all tests including the docker and git integration tests",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "./...")
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Run vet and unit tests",
	Deps:  goyek.Deps{vet, test},
})

func main() {
	goyek.Main(os.Args[1:])
}
