package defmodel

// OpenOptions configures how Open loads a deformation model.
type OpenOptions struct {
	// Version selects the component set active at open time, equivalent to
	// calling SetVersion(Version, "") right after Open. Empty means the
	// latest version in version.csv.
	Version string

	// SubmodelFilter restricts which submodels are loaded at all, using the
	// "name+name+..." / "-name+name+..." syntax (see ParseSubmodelFilter).
	// Empty loads every submodel.
	SubmodelFilter string

	// LoadAll forces every spatial submodel (every grid and TIN file) to be
	// read immediately, in parallel, instead of lazily on first query.
	LoadAll bool

	// Workers bounds the parallelism used when LoadAll is set. Zero means
	// DefaultLoadWorkers.
	Workers int

	// UseCache enables the binary cache (spec §4.7). Disabled by default so
	// that opening a model never writes to disk unless asked to.
	UseCache bool

	// ClearCache removes any existing binary cache file before opening, so
	// the next load rebuilds it from source CSVs. Only meaningful alongside
	// UseCache.
	ClearCache bool
}

// DefaultLoadWorkers is the worker-pool size used by LoadAll when
// OpenOptions.Workers is zero.
const DefaultLoadWorkers = 4

// DefaultOpenOptions returns the conservative defaults: latest version, every
// submodel, lazy loading, no binary cache.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		Version:        "",
		SubmodelFilter: "",
		LoadAll:        false,
		Workers:        DefaultLoadWorkers,
		UseCache:       false,
		ClearCache:     false,
	}
}
