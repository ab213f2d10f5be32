// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/attune-dev/attune/internal/config"
	"github.com/attune-dev/attune/internal/embedding"
	"github.com/attune-dev/attune/internal/oracle"
	"github.com/attune-dev/attune/internal/secrets"
	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// oracleChoice is one selectable completion provider in the wizard.
// Name is the backend registered with the oracle registry and the
// keyring entry the key is stored under.
type oracleChoice struct {
	name             string
	label            string
	baseURL          string
	model            string
	envHint          string
	coversEmbeddings bool
}

var oracleChoices = []oracleChoice{
	{name: "openai", label: "Groq (Llama, OpenAI-compatible)", baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-8b-instant", envHint: "GROQ_API_KEY"},
	{name: "openai", label: "OpenAI", baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", envHint: "OPENAI_API_KEY", coversEmbeddings: true},
	{name: "anthropic", label: "Anthropic", model: "claude-3-5-haiku-latest", envHint: "ANTHROPIC_API_KEY"},
	{name: "google", label: "Google Gemini", model: "gemini-2.0-flash", envHint: "GEMINI_API_KEY"},
}

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepBackend       initWizardStep = iota // select completion provider
	stepAPIKey                              // enter oracle API key
	stepValidateKey                         // validating oracle key (spinner)
	stepEmbedKey                            // enter embedding API key
	stepValidateEmbed                       // validating embedding key (spinner)
	stepDone                                // wizard complete
	stepError                               // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Choice   oracleChoice
	APIKey   string
	EmbedKey string
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	choiceIdx      int
	apiKeyInput    textinput.Model
	embedKeyInput  textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	embedKey := textinput.New()
	embedKey.Placeholder = "paste key, or leave empty to use OPENAI_API_KEY"
	embedKey.EchoMode = textinput.EchoPassword
	embedKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepBackend,
		choiceIdx:     0,
		apiKeyInput:   apiKey,
		embedKeyInput: embedKey,
		spinner:       sp,
		secretStore:   store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateKey:
			m.step = stepAPIKey
			m.apiKeyInput.Focus()
		case stepValidateEmbed:
			m.step = stepEmbedKey
			m.embedKeyInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepBackend:
		return m.handleBackendKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepEmbedKey:
		return m.handleEmbedKeyInput(msg)
	}
	return m, nil
}

func (m initModel) handleBackendKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.choiceIdx > 0 {
			m.choiceIdx--
		}
	case "down", "j":
		if m.choiceIdx < len(oracleChoices)-1 {
			m.choiceIdx++
		}
	case "enter":
		m.result.Choice = oracleChoices[m.choiceIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateOracleKeyCmd(m.result.Choice, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleEmbedKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.embedKeyInput.Value())
		if key == "" {
			// Rely on OPENAI_API_KEY from the environment instead.
			m.result.EmbedKey = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.result.EmbedKey = key
		m.validationErr = ""
		m.step = stepValidateEmbed
		return m, tea.Batch(
			m.spinner.Tick,
			validateEmbeddingKeyCmd(key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.embedKeyInput, cmd = m.embedKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateKey:
		if m.result.Choice.coversEmbeddings {
			// The same OpenAI key serves completions and embeddings.
			m.result.EmbedKey = m.result.APIKey
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepEmbedKey
		m.validationErr = ""
		m.embedKeyInput.SetValue("")
		m.embedKeyInput.Focus()
		return m, textinput.Blink
	case stepValidateEmbed:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	}
	return m, nil
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepAPIKey:
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	case stepEmbedKey:
		var cmd tea.Cmd
		m.embedKeyInput, cmd = m.embedKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Attune Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepBackend:
		b.WriteString(promptStyle.Render("Step 1/2: Pick your completion provider") + "\n\n")
		for i, c := range oracleChoices {
			if i == m.choiceIdx {
				b.WriteString(selectedStyle.Render("  > "+c.label) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+c.label) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+m.result.Choice.label+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("also resolvable later from "+m.result.Choice.envHint))
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + m.result.Choice.label + " API key…\n")

	case stepEmbedKey:
		b.WriteString(promptStyle.Render("Step 2/2: OpenAI key for embeddings") + "\n\n")
		b.WriteString(dimStyle.Render("Facts and preferences are indexed with OpenAI embeddings.") + "\n\n")
		b.WriteString(m.embedKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue (empty to skip)  ctrl+c to quit"))

	case stepValidateEmbed:
		b.WriteString(m.spinner.View() + " Validating embedding API key…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("attune chat") + " to start talking.\n")
		b.WriteString("Run " + promptStyle.Render("attune doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

// validateOracleKey sends one tiny completion through the chosen backend.
// Exposed as a variable so tests can replace it.
var validateOracleKey = func(ctx context.Context, choice oracleChoice, key string) error {
	backend, err := buildChoiceBackend(choice, key)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	_, err = backend.Complete(ctx, oracle.CompletionRequest{
		Model:    choice.model,
		Messages: []oracle.Message{oracle.UserMessage("Reply with OK.")},
		Options:  oracle.Options{MaxTokens: 8},
	})
	return err
}

// validateEmbeddingKey embeds one word against the default endpoint.
// Exposed as a variable so tests can replace it.
var validateEmbeddingKey = func(ctx context.Context, key string) error {
	embedder, err := embedding.NewOpenAI(embedding.Config{APIKey: key, Dimensions: 1536})
	if err != nil {
		return err
	}
	_, err = embedder.Embed(ctx, "ping")
	return err
}

func buildChoiceBackend(choice oracleChoice, key string) (oracle.Oracle, error) {
	cfg := &config.Config{}
	cfg.Oracle.Backend = choice.name
	cfg.Oracle.BaseURL = choice.baseURL
	return newOracleBackend(cfg, key)
}

func validateOracleKeyCmd(choice oracleChoice, key string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := validateOracleKey(ctx, choice, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func validateEmbeddingKeyCmd(key string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := validateEmbeddingKey(ctx, key); err != nil {
			return validationErrorMsg{step: stepValidateEmbed, err: err}
		}
		return validationSuccessMsg{step: stepValidateEmbed}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeKeysAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation ---

// generateConfigYAML produces a minimal attune.yaml from the wizard
// result. When includeKeys is false the keys live in the OS keyring and
// only a comment marks where they would go.
func generateConfigYAML(result initResult, includeKeys bool) string {
	var sb strings.Builder
	sb.WriteString("# Attune configuration generated by attune init.\n")
	sb.WriteString("# Any key can be overridden with an ATTUNE_<SECTION>_<KEY> environment variable.\n\n")

	sb.WriteString("oracle:\n")
	sb.WriteString(fmt.Sprintf("  backend: %s\n", result.Choice.name))
	if result.Choice.baseURL != "" {
		sb.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", result.Choice.baseURL))
	}
	sb.WriteString(fmt.Sprintf("  model: \"%s\"\n", result.Choice.model))
	if includeKeys {
		sb.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", result.APIKey))
	} else {
		sb.WriteString("  # API keys live in the OS keyring (service \"attune\"), not in this file.\n")
	}
	sb.WriteString("\n")

	if includeKeys && result.EmbedKey != "" {
		sb.WriteString("embedding:\n")
		sb.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", result.EmbedKey))
		sb.WriteString("\n")
	}

	sb.WriteString("# store:\n")
	sb.WriteString("#   backend: flat\n")
	sb.WriteString("#   path: \"~/.attune/knowledge\"\n")
	sb.WriteString("#\n")
	sb.WriteString("# retrieval:\n")
	sb.WriteString("#   k: 3\n")
	sb.WriteString("#   similarity_threshold: 0.75\n")

	return sb.String()
}

// storeKeysAndWriteConfig saves the collected keys to the OS keyring and
// writes the config YAML to the default config path. When the keyring is
// unavailable (headless hosts without a session bus) the keys are written
// into the config file instead, with 0600 permissions.
//
// Keyring entries already stored are not rolled back if the config write
// fails; a successful re-run overwrites them.
func storeKeysAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	keyringOK := true
	if err := store.Store(result.Choice.name, result.APIKey); err != nil {
		slog.Warn("keyring unavailable, writing keys to the config file instead", "error", err)
		keyringOK = false
	}
	if keyringOK && result.EmbedKey != "" {
		if err := store.Store(secrets.EmbeddingKeyName, result.EmbedKey); err != nil {
			slog.Warn("keyring unavailable, writing keys to the config file instead", "error", err)
			keyringOK = false
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", attuneerr.Errorf(attuneerr.CodeCLIInputInvalid,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", attuneerr.Errorf(attuneerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	yaml := generateConfigYAML(result, !keyringOK)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		return "", attuneerr.Errorf(attuneerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the target config path. Exposed as a
// variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Picking a completion provider (Groq, OpenAI, Anthropic, Google)
  2. Adding an OpenAI key for embeddings

API keys are validated with a live call and stored in the OS keyring
where available; the config file then never holds them in plain text.

After completion, run:
  attune chat     - start a conversation
  attune doctor   - verify your setup`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Refuse to run without a terminal; the wizard is interactive only.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"attune init requires an interactive terminal.\n"+
				"To configure Attune non-interactively, edit ~/.config/attune/attune.yaml directly.")
		return attuneerr.New(attuneerr.CodeCLISetupFailure, "attune init: not an interactive terminal")
	}

	forceOverwrite, _ := cmd.Flags().GetBool("force")

	store := secrets.NewKeyringStore(secrets.DefaultService)
	m := newInitModel(store)
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return attuneerr.Errorf(attuneerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return attuneerr.New(attuneerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return attuneerr.Errorf(attuneerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// Quitting early is fine; nothing was written.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
