package banner

import (
	"fmt"

	"recalld/pkg/config"
)

const banner = `
██████╗ ███████╗ ██████╗ █████╗ ██╗     ██╗     ██████╗
██╔══██╗██╔════╝██╔════╝██╔══██╗██║     ██║     ██╔══██╗
██████╔╝█████╗  ██║     ███████║██║     ██║     ██║  ██║
██╔══██╗██╔══╝  ██║     ██╔══██║██║     ██║     ██║  ██║
██║  ██║███████╗╚██████╗██║  ██║███████╗███████╗██████╔╝
╚═╝  ╚═╝╚══════╝ ╚═════╝╚═╝  ╚═╝╚══════╝╚══════╝╚═════╝
`

// PrintWithEff prints the startup banner using the effective config.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}
	model := ""
	if eff.Config != nil {
		model = eff.Config.LLM.Model
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if model != "" {
		fmt.Printf("Model:    %s\n", model)
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config sources: %s\n", src)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/threads/{id}/turns - Submit a user message (JSON: text)")
	fmt.Println("GET  /v1/threads/{id}/turns/status - Current turn status")
	fmt.Println("GET  /v1/threads/{id}/messages - List thread messages")
	fmt.Println("POST /v1/threads/{id}/pins/{messageID} - Toggle a pin")
	fmt.Println("POST /v1/ask - Synchronous question answering (bearer token)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/threads/t1/turns' -d '{\"text\": \"hello\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/threads/t1/messages?limit=10'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure API keys and the ask credential for production use")
}
