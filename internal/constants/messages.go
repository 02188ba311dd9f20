package constants

// CLI output.
const (
	// MsgConfigValid is printed by `config validate` on success.
	MsgConfigValid = "✅ Configuration is valid: %s\n"

	// MsgConfigInvalid heads the list of validation errors.
	MsgConfigInvalid = "❌ Configuration validation failed:\n"

	// MsgConfigError prints a single validation error.
	MsgConfigError = "  - %v\n"

	// MsgFatal prints an error that aborts a command.
	MsgFatal = "❌ %v\n"

	// MsgTaskNotFound is printed by `tasks show` for an unknown id.
	MsgTaskNotFound = "task %s not found\n"

	// MsgNoTasks is printed by `tasks list` when nothing matches.
	MsgNoTasks = "no tasks found\n"

	// MsgTaskRow formats one line of `tasks list`: id, status, priority, type, agent.
	MsgTaskRow = "%-36s  %-9s  %-8s  %-16s  %s\n"
)
