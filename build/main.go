package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/goyek/goyek/v2"
)

func gocmd(a *goyek.A, args ...string) {
	a.Log("go ", args)
	cmd := exec.CommandContext(a.Context(), "go", args...)
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
		gocmd(a, "vet", "./...")
	},
})

var fmtCheck = goyek.Define(goyek.Task{
	Name:  "fmt",
	Usage: "Fail if any file is not gofmt-formatted",
	Action: func(a *goyek.A) {
		out, err := exec.CommandContext(a.Context(), "gofmt", "-l", "build", "cmd", "internal").CombinedOutput()
		if err != nil {
			a.Fatal(err, string(out))
		}
		if files := strings.TrimSpace(string(out)); files != "" {
			a.Error("files need gofmt:\n" + files)
		}
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run unit tests (short mode skips the docker provider tests)",
	Action: func(a *goyek.A) {
		gocmd(a, "test", "-race", "./...")
	},
})

var short = goyek.Define(goyek.Task{
	Name:  "short",
	Usage: "Run unit tests in short mode",
	Action: func(a *goyek.A) {
		gocmd(a, "test", "-short", "./...")
	},
})

var build = goyek.Define(goyek.Task{
	Name:  "build",
	Usage: "Build the hltcheck binary into bin/",
	Action: func(a *goyek.A) {
		gocmd(a, "build", "-o", "bin/hltcheck", "./cmd/hltcheck")
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Check formatting, vet, test and build",
	Deps:  goyek.Deps{fmtCheck, vet, test, build},
})

func main() {
	goyek.SetDefault(all)
	goyek.Main(os.Args[1:])
}
