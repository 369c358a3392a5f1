package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/mfulz/linegeist/interfaces/icommand"
	"github.com/spf13/cobra"
	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

// Macro is a user-defined command from the macro file. Exactly one of Text
// and Lua must be set.
type Macro struct {
	Description string `yaml:"description"`
	Text        string `yaml:"text"` // template with {args} and {nick}
	Lua         string `yaml:"lua"`  // script with `args`, `nick`, send(text) and reply(text)
}

// MacroFile represents macros.yaml.
type MacroFile struct {
	Macros map[string]Macro `yaml:"macros"`
}

// LoadMacros reads and validates a macro file.
func LoadMacros(path string) (map[string]Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macros: %w", err)
	}
	var file MacroFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	for name, m := range file.Macros {
		if (m.Text == "") == (m.Lua == "") {
			return nil, fmt.Errorf("macro %q: exactly one of text or lua must be set", name)
		}
		if name != strings.ToLower(name) || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("macro %q: names must be lowercase single words", name)
		}
	}
	return file.Macros, nil
}

// AddMacros registers every macro with r.
func (r *Registry) AddMacros(macros map[string]Macro) error {
	for name, m := range macros {
		if err := r.Add(macroCommand{name: name, macro: m}); err != nil {
			return err
		}
	}
	return nil
}

type macroCommand struct {
	name  string
	macro Macro
}

func (m macroCommand) Name() string { return m.name }

func (m macroCommand) Build(env *icommand.Env) *cobra.Command {
	short := m.macro.Description
	if short == "" {
		short = "User macro"
	}
	return &cobra.Command{
		Use:                m.name + " [args...]",
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if m.macro.Lua != "" {
				return m.runLua(cmd, env, args)
			}
			text := expandTemplate(m.macro.Text, env.Nick, args)
			msg, _, err := env.Line.FormatAndSend(cmd.Context(), text)
			if err != nil {
				return err
			}
			cmd.Printf("sent %s\n", msg.ID)
			return nil
		},
	}
}

func expandTemplate(tmpl, nick string, args []string) string {
	return strings.NewReplacer(
		"{args}", strings.Join(args, " "),
		"{nick}", nick,
	).Replace(tmpl)
}

// runLua executes the macro script in a fresh state bound to the command
// context, so a cancelled line stops a runaway script.
func (m macroCommand) runLua(cmd *cobra.Command, env *icommand.Env, args []string) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(cmd.Context())

	argTable := L.NewTable()
	for _, a := range args {
		argTable.Append(lua.LString(a))
	}
	L.SetGlobal("args", argTable)
	L.SetGlobal("nick", lua.LString(env.Nick))

	L.SetGlobal("send", L.NewFunction(func(L *lua.LState) int {
		text := L.CheckString(1)
		msg, _, err := env.Line.FormatAndSend(cmd.Context(), text)
		if err != nil {
			L.RaiseError("send failed: %v", err)
			return 0
		}
		L.Push(lua.LString(msg.ID))
		return 1
	}))
	L.SetGlobal("reply", L.NewFunction(func(L *lua.LState) int {
		cmd.Println(L.CheckString(1))
		return 0
	}))

	if err := L.DoString(m.macro.Lua); err != nil {
		return fmt.Errorf("macro %s: %w", m.name, err)
	}
	return nil
}
