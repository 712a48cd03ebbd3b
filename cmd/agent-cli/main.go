package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/prometheus-agent-platform/internal/agent"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Agent API server URL")
	oneShot   = flag.String("query", "", "Translate a single question and exit")
)

func main() {
	flag.Parse()

	if *oneShot != "" {
		if err := translate(*oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	interactive()
}

func interactive() {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Println("\n╔═══════════════════════════════════════════════════════╗")
	cyan.Println("║     Prometheus Agent Assistant                       ║")
	cyan.Println("╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
	green.Println("Ask questions about your metrics in plain language, check")
	green.Println("system health and investigate firing alerts.")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  help                - Show this help message")
	fmt.Println("  health [window]     - Assess system health (e.g. health 2h)")
	fmt.Println("  investigate <name>  - Investigate an active alert")
	fmt.Println("  translate <text>    - Translate a question to PromQL")
	fmt.Println("  exit/quit           - Exit the CLI")
	fmt.Println()
	fmt.Println("Anything else is sent as a chat message.")
	fmt.Println()

	var conversationID string
	scanner := bufio.NewScanner(os.Stdin)

	for {
		cyan.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		command, rest := splitCommand(input)
		var err error

		switch command {
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		case "help":
			printHelp()
			continue
		case "health":
			err = assessHealth(rest)
		case "investigate":
			err = investigate(rest)
		case "translate":
			err = translate(rest)
		default:
			conversationID, err = chat(conversationID, input)
		}

		if err != nil {
			color.Red("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

func splitCommand(input string) (string, string) {
	parts := strings.SplitN(input, " ", 2)
	command := strings.ToLower(parts[0])
	rest := ""
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}
	return command, rest
}

func translate(question string) error {
	var result agent.TranslationResult
	if err := post("/api/v1/agent/translate", map[string]string{"question": question}, &result); err != nil {
		return err
	}

	fmt.Println()
	color.New(color.FgGreen, color.Bold).Println("Generated query:")
	fmt.Println("  " + result.GeneratedQuery)
	color.Yellow("Confidence: %.2f", result.Confidence)
	fmt.Println()

	if len(result.AlternativeQueries) > 0 {
		color.Green("Alternatives:")
		for _, alt := range result.AlternativeQueries {
			fmt.Println("  • " + alt)
		}
	}

	if result.ExecutedResult != nil && result.ExecutedResult.HasData {
		points := result.ExecutedResult.Points
		color.Green("Result: %d points, latest value %.4f", len(points), points[len(points)-1].Value)
	} else {
		color.Yellow("Query returned no data")
	}
	fmt.Println()

	return nil
}

func assessHealth(window string) error {
	var assessment agent.HealthAssessment
	if err := post("/api/v1/agent/health", map[string]string{"window": window}, &assessment); err != nil {
		return err
	}

	fmt.Println()
	scoreColor := color.New(color.FgGreen, color.Bold)
	if assessment.Score < 50 {
		scoreColor = color.New(color.FgRed, color.Bold)
	} else if assessment.Score < 80 {
		scoreColor = color.New(color.FgYellow, color.Bold)
	}
	scoreColor.Printf("Health score: %.1f/100\n", assessment.Score)
	if assessment.Degraded {
		color.Yellow("(narrative degraded: reasoning backend unavailable)")
	}
	fmt.Println()

	if len(assessment.Findings) > 0 {
		color.Green("Findings:")
		for _, finding := range assessment.Findings {
			fmt.Println("  • " + finding)
		}
		fmt.Println()
	}
	if len(assessment.Anomalies) > 0 {
		color.Yellow("Anomalies:")
		for _, a := range assessment.Anomalies {
			fmt.Printf("  • %s: %.2f (%.1fσ, %s)\n", a.Metric, a.Value, a.Sigma, a.Severity)
		}
		fmt.Println()
	}
	if len(assessment.Recommendations) > 0 {
		color.Green("Recommendations:")
		for _, rec := range assessment.Recommendations {
			fmt.Println("  • " + rec)
		}
		fmt.Println()
	}

	return nil
}

func investigate(alertName string) error {
	if alertName == "" {
		return fmt.Errorf("usage: investigate <alert-name>")
	}

	var result agent.InvestigationResult
	if err := post("/api/v1/agent/investigate", map[string]string{"alert_name": alertName}, &result); err != nil {
		return err
	}

	fmt.Println()
	color.New(color.FgGreen, color.Bold).Printf("Alert: %s (%s, assessed %s)\n",
		result.Alert.Name, result.Alert.State, result.SeverityAssessment)
	if result.Degraded {
		color.Yellow("(narrative degraded: reasoning backend unavailable)")
	}
	fmt.Println()

	color.Green("Root cause hypothesis:")
	fmt.Println("  " + result.RootCauseHypothesis)
	fmt.Println()

	if len(result.RemediationSteps) > 0 {
		color.Green("Remediation steps:")
		for i, step := range result.RemediationSteps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
		fmt.Println()
	}

	return nil
}

func chat(conversationID, message string) (string, error) {
	var result agent.ChatResult
	err := post("/api/v1/agent/chat", map[string]string{
		"conversation_id": conversationID,
		"message":         message,
	}, &result)
	if err != nil {
		return conversationID, err
	}

	fmt.Println()
	fmt.Println(result.Reply)
	fmt.Println()

	return result.ConversationID, nil
}

func post(path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", *serverURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printHelp() {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println("Example questions:")
	fmt.Println()
	fmt.Println("  • What's the current CPU usage?")
	fmt.Println("  • Show me the request rate over the last hour")
	fmt.Println("  • Are all services up?")
	fmt.Println("  • Why is memory usage growing?")
	fmt.Println()
	color.Green("Commands:")
	fmt.Println("  health [window]     - Assess system health")
	fmt.Println("  investigate <name>  - Investigate an active alert")
	fmt.Println("  translate <text>    - Translate a question to PromQL")
	fmt.Println("  exit                - Exit the CLI")
	fmt.Println()
}
