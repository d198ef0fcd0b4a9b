// Package cli parses parlo command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandListen    Command = "listen"
	CommandSay       Command = "say"
	CommandDevices   Command = "devices"
	CommandStatus    Command = "status"
	CommandStop      Command = "stop"
	CommandCancel    Command = "cancel"
	CommandInterrupt Command = "interrupt"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandListen:    {},
	CommandSay:       {},
	CommandDevices:   {},
	CommandStatus:    {},
	CommandStop:      {},
	CommandCancel:    {},
	CommandInterrupt: {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Text       string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if cmd == CommandSay {
				text := strings.TrimSpace(strings.Join(rest, " "))
				if text == "" {
					return Parsed{}, errors.New("say requires text to speak")
				}
				parsed.Text = text
				return parsed, nil
			}
			if len(rest) > 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  listen      Run the voice loop: capture, transcribe, and gate utterances
  say TEXT    Synthesize TEXT and play it through the speakers
  devices     List available input devices
  status      Print the active listener state
  stop        Stop the active listener and flush buffered speech
  cancel      Stop the active listener and discard buffered speech
  interrupt   Silence any playing speech immediately
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parlo/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
