// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/config"
	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/secrets"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// initHTTPClient is the HTTP client used for key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepWatchDir                          // optional folder to watch
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider provider.ProviderName
	APIKey   string
	WatchDir string
}

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

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
	providers      []provider.ProviderName
	providerIdx    int
	apiKeyInput    textinput.Model
	watchDirInput  textinput.Model
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

	watchDir := textinput.New()
	watchDir.Placeholder = "e.g. ~/hr/resumes (leave empty to skip)"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepProvider,
		providers:     provider.SupportedProviders(),
		apiKeyInput:   apiKey,
		watchDirInput: watchDir,
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
		m.step = stepWatchDir
		m.validationErr = ""
		m.watchDirInput.Focus()
		return m, textinput.Blink

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
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
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepWatchDir:
		return m.handleWatchDirInput(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(m.providers)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = m.providers[m.providerIdx]
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
			validateProviderKeyCmd(m.result.Provider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleWatchDirInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		dir := strings.TrimSpace(m.watchDirInput.Value())
		if dir != "" {
			expanded, err := expandHome(dir)
			if err != nil {
				m.validationErr = err.Error()
				return m, nil
			}
			if info, err := os.Stat(expanded); err != nil || !info.IsDir() {
				m.validationErr = fmt.Sprintf("%s is not a directory", dir)
				return m, nil
			}
			dir = expanded
		}
		m.result.WatchDir = dir
		m.validationErr = ""
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.watchDirInput, cmd = m.watchDirInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepAPIKey:
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	case stepWatchDir:
		m.watchDirInput, cmd = m.watchDirInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Aegis Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose the model provider") + "\n\n")
		for i, p := range m.providers {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+string(m.result.Provider)+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepWatchDir:
		b.WriteString(promptStyle.Render("Step 2/2: Folder of resumes and policies to index") + "\n\n")
		b.WriteString(m.watchDirInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to finish  ctrl+c to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		if needsGoogleEmbeddings(m.result.Provider) {
			b.WriteString(dimStyle.Render("Embeddings use Google: run 'aegis secret set google-api-key'.") + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("aegis start") + " and " + promptStyle.Render("aegis chat") + " to get started.\n")
		b.WriteString("Run " + promptStyle.Render("aegis doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func validateProviderKeyCmd(p provider.ProviderName, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// GenerateConfigYAML produces a minimal aegis.yaml from the wizard result.
// API keys are referenced via keyring:// URIs; the secrets themselves are
// stored by storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) string {
	chat := defaultModelForProvider(result.Provider)
	embedding, dims := embeddingModelForProvider(result.Provider)

	var sb strings.Builder
	sb.WriteString("# Aegis configuration, generated by aegis init\n\n")

	sb.WriteString("server:\n")
	sb.WriteString("  listen: \"" + defaultAddress + "\"\n\n")

	sb.WriteString("providers:\n")
	writeProvider(&sb, string(result.Provider))
	if needsGoogleEmbeddings(result.Provider) {
		writeProvider(&sb, string(provider.ProviderGoogle))
	}
	sb.WriteString("\n")

	sb.WriteString("models:\n")
	fmt.Fprintf(&sb, "  default: %q\n", chat)
	fmt.Fprintf(&sb, "  embedding: %q\n", embedding)
	fmt.Fprintf(&sb, "  embedding_dims: %d\n\n", dims)

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n")
	sb.WriteString("  data_dir: aegis_data\n")

	if result.WatchDir != "" {
		sb.WriteString("\ningest:\n")
		fmt.Fprintf(&sb, "  watch_dir: %q\n", result.WatchDir)
	}

	return sb.String()
}

func writeProvider(sb *strings.Builder, name string) {
	fmt.Fprintf(sb, "  %s:\n", name)
	fmt.Fprintf(sb, "    api_key: \"keyring://%s/%s\"\n", secrets.Service, secrets.ProviderKeyName(name))
}

// defaultModelForProvider returns the chat model written for a provider.
func defaultModelForProvider(p provider.ProviderName) string {
	switch p {
	case provider.ProviderAnthropic:
		return "anthropic/claude-sonnet-4-5"
	case provider.ProviderOpenAI:
		return "openai/gpt-4o-mini"
	case provider.ProviderGoogle:
		return "google/gemini-2.5-flash"
	case provider.ProviderOpenRouter:
		return "openrouter/google/gemini-2.5-flash"
	default:
		return string(p) + "/default"
	}
}

// embeddingModelForProvider returns the embedding model and its dimensions.
// Providers without an embeddings API fall back to Google.
func embeddingModelForProvider(p provider.ProviderName) (string, int) {
	if p == provider.ProviderOpenAI {
		return "openai/text-embedding-3-small", 1536
	}
	return "google/text-embedding-004", 768
}

func needsGoogleEmbeddings(p provider.ProviderName) bool {
	return p == provider.ProviderAnthropic || p == provider.ProviderOpenRouter
}

// storeSecretAndWriteConfig saves the API key to the OS keyring and writes
// the config YAML to the default config path. An existing config is kept
// unless forceOverwrite is set.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	keyName := secrets.ProviderKeyName(string(result.Provider))
	if err := store.Set(secrets.Service, keyName, result.APIKey); err != nil {
		return "", aegiserr.Errorf(aegiserr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", aegiserr.Errorf(aegiserr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateConfigYAML(result)), 0o600); err != nil {
		return "", aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the config path init writes to. A variable so
// tests can redirect it.
var configPathForWrite = config.DefaultConfigPath

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", aegiserr.Errorf(aegiserr.CodeCLIInputInvalid, "resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for Aegis",
		Long: `Run an interactive wizard that walks you through:
  1. Choosing a model provider (Google, OpenAI, Anthropic, OpenRouter)
  2. Optionally choosing a folder of documents to keep indexed

The API key is stored in the OS keyring and referenced via a keyring:// URI
in the config file. No secrets are written in plain text.

Use --defaults to write the commented default config without prompting.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().Bool("defaults", false, "write the default config file and exit")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
		return writeDefaultConfig(cmd, forceOverwrite)
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"aegis init requires an interactive terminal.\n"+
				"Use 'aegis init --defaults' and edit ~/.config/aegis/aegis.yaml instead.")
		return aegiserr.New(aegiserr.CodeCLISetupFailure, "aegis init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory())
	m.forceOverwrite = forceOverwrite

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return aegiserr.Errorf(aegiserr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return aegiserr.New(aegiserr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return aegiserr.Errorf(aegiserr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

func writeDefaultConfig(cmd *cobra.Command, forceOverwrite bool) error {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return err
	}
	if !forceOverwrite {
		if _, err := os.Stat(cfgPath); err == nil {
			return aegiserr.Errorf(aegiserr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, config.DefaultConfigYAML, 0o600); err != nil {
		return aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", cfgPath)
	return err
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
