package defs

// Common file names used across the project.
const (
	// ConfigDir is the per-project configuration root.
	ConfigDir = ".claude"

	// ClaudeMD is the project context file loaded on activation.
	ClaudeMD = "CLAUDE.md"

	// MetadataJSON holds project identity and structure version.
	MetadataJSON = "metadata.json"

	// SkillRulesJSON is the activation rule set of a project.
	SkillRulesJSON = "skill-rules.json"

	// SkillRulesYAML is the YAML spelling of the rule set.
	SkillRulesYAML = "skill-rules.yaml"

	// SettingsJSON is the Claude Code project settings file.
	SettingsJSON = "settings.json"

	// SkillMD is the entry file of a skill directory.
	SkillMD = "SKILL.md"

	// PromptHookSh is the user prompt submit hook script.
	PromptHookSh = "user-prompt-submit.sh"
)

// Directory names under ConfigDir.
const (
	HooksDir    = "hooks"
	SkillsDir   = "skills"
	CommandsDir = "commands"
	AgentsDir   = "agents"
)

// Files kept in the orchestrator home directory.
const (
	RegistryJSON  = "registry.json"
	RegistryLock  = "registry.lock"
	BackupsDir    = "backups"
	ResumeJSON    = "resume.json"
	ThrottleJSON  = "throttle.json"
	HistoryDB     = "history.db"
	ConfigYAML    = "config.yaml"
	HomeDirName   = "orchestrator"
	EnvHome       = "ORCHESTRATOR_HOME"
	EnvPrefix     = "ORCHESTRATOR"
	EnvLogLevel   = "ORCHESTRATOR_LOG_LEVEL"
	CorruptSuffix = ".corrupt-"
)
