package common

var (
	Version = "dev"

	PackageName = "reporteer"
)
