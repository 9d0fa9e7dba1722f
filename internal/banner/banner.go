package banner

import (
	"fmt"

	"github.com/perchlabs/echotree/internal/config"
)

// Logo is the ASCII art logo for EchoTree
const Logo = `
   ███████╗ ██████╗██╗  ██╗ ██████╗ ████████╗██████╗ ███████╗███████╗
   ██╔════╝██╔════╝██║  ██║██╔═══██╗╚══██╔══╝██╔══██╗██╔════╝██╔════╝
   █████╗  ██║     ███████║██║   ██║   ██║   ██████╔╝█████╗  █████╗
   ██╔══╝  ██║     ██╔══██║██║   ██║   ██║   ██╔══██╗██╔══╝  ██╔══╝
   ███████╗╚██████╗██║  ██║╚██████╔╝   ██║   ██║  ██║███████╗███████╗
   ╚══════╝ ╚═════╝╚═╝  ╚═╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝
`

// Tagline is the project tagline
const Tagline = "Pattern Memory for Interaction Agents"

// Print prints the banner with tagline
func Print() {
	fmt.Print(Logo)
	fmt.Printf("   %s\n\n", Tagline)
}

// PrintWithVersion prints the banner with version info
func PrintWithVersion(version string) {
	fmt.Print(Logo)
	fmt.Printf("   %s\n", Tagline)
	fmt.Printf("   v%s\n\n", version)
}

// PrintCompact prints a compact single-line banner
func PrintCompact() {
	fmt.Println("🌳 EchoTree - Pattern Memory for Interaction Agents")
}

// Startup prints the startup banner with the effective settings
func Startup(version string, cfg *config.Config) {
	fmt.Println()
	fmt.Printf("ECHOTREE v%s\n", version)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("  Snapshot:  %s (save every %d actions)\n", cfg.Snapshot.Path, cfg.Snapshot.SaveEvery)
	if cfg.Snapshot.Autosave != nil && cfg.Snapshot.Autosave.Enabled {
		fmt.Printf("  Autosave:  %s\n", cfg.Snapshot.Autosave.Schedule)
	} else {
		fmt.Println("  Autosave:  off")
	}
	if cfg.Journal != nil && cfg.Journal.Enabled {
		fmt.Printf("  Journal:   %s\n", cfg.Journal.Path)
	} else {
		fmt.Println("  Journal:   off")
	}
	if cfg.Echo.Enabled {
		fmt.Printf("  Echo:      threshold %.2f, min samples %d\n", cfg.Echo.Threshold, cfg.Echo.MinSamples)
	} else {
		fmt.Println("  Echo:      off")
	}
	fmt.Printf("  Tree:      depth limit %d\n", cfg.Tree.MaxDepth)

	fmt.Println()
}
