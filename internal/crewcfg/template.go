package crewcfg

// TemplateConfig returns the starter config that crew init writes at the
// project root. Names and branches are placeholders the user edits.
func TemplateConfig(mainBranch string) *Config {
	return &Config{
		Team: &Team{
			Name: "dev",
			Teammates: []Teammate{
				{Name: "alice", Branch: "feat/alice", Role: "developer", Focus: "Own the feature work."},
				{Name: "bob", Branch: "feat/bob", Role: "reviewer"},
			},
		},
		Project:         Project{MainBranch: mainBranch},
		StaleAfterHours: DefaultStaleAfterHours,
	}
}
