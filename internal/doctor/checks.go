package doctor

// KitChecks returns the standard crewkit health checks in display order.
func KitChecks() []Check {
	return []Check{
		NewGitVersionCheck(),
		NewKitDirCheck(),
		NewStaleBinaryCheck(),
		NewStoreCheck(),
		NewHookWiringCheck(),
		NewHookErrorsCheck(),
		NewRegistryCheck(),
	}
}
