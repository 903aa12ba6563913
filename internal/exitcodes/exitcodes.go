package exitcodes

// Exit codes for the orphan-sweep tools
// These codes form the operational contract with cron jobs and operators
const (
	Success       = 0 // Successful execution
	InvalidConfig = 2 // Configuration file or usage invalid
	RuntimeError  = 4 // Store or blob failure during execution
)
