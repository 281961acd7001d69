package collector

type Options struct {
	// Root is the directory nesting depth is measured from.
	Root string
	// Include filters files found while expanding directories.
	Include    string
	Kubeconfig string
}

func DefaultOptions() Options {
	return Options{
		Root:    ".",
		Include: "*",
	}
}
