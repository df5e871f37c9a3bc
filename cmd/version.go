package cmd

var Version string

// buildVersion gets replaced while building with
// go build -ldflags "-X github.com/omniscale/linesplit/cmd.buildVersion 1234"
var buildVersion string

func init() {
	Version = "1.0.0"
	Version += buildVersion
}
