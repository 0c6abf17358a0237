package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Runner CLI 依赖的迁移操作，*Migrator 实现了它
type Runner interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
}

// CLI 实现 callflow migrate 的各个子命令
type CLI struct {
	runner Runner
	out    io.Writer
}

// NewCLI out 为空时写到 stdout
func NewCLI(runner Runner, out io.Writer) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{runner: runner, out: out}
}

type subcommand struct {
	// arg 参数名，空表示不需要参数
	arg string
	// run 返回打印在当前版本前的提示
	run func(ctx context.Context, r Runner, n int) (string, error)
}

var subcommands = map[string]subcommand{
	"up": {run: func(ctx context.Context, r Runner, _ int) (string, error) {
		return "Migrations complete.", r.Up(ctx)
	}},
	"down": {run: func(ctx context.Context, r Runner, _ int) (string, error) {
		return "Rollback complete.", r.Down(ctx)
	}},
	"steps": {arg: "n", run: func(ctx context.Context, r Runner, n int) (string, error) {
		return fmt.Sprintf("Moved %+d step(s).", n), r.Steps(ctx, n)
	}},
	"goto": {arg: "version", run: func(ctx context.Context, r Runner, v int) (string, error) {
		if v < 0 {
			return "", fmt.Errorf("version must not be negative")
		}
		return "Migration complete.", r.Goto(ctx, uint(v))
	}},
	"version": {run: func(context.Context, Runner, int) (string, error) {
		return "", nil
	}},
}

// Subcommands 返回全部子命令名，按字典序
func Subcommands() []string {
	names := []string{"force", "reset", "status"}
	for name := range subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run 执行子命令，cmd 为空等同 up
func (c *CLI) Run(ctx context.Context, cmd string, args []string) error {
	if cmd == "" {
		cmd = "up"
	}
	switch cmd {
	case "reset":
		if err := c.runner.DownAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "All migrations rolled back.")
		return nil
	case "force":
		v, err := intArg("version", args)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("version must not be negative")
		}
		if err := c.runner.Force(ctx, v); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Version forced to %d (dirty flag cleared).\n", v)
		return nil
	case "status":
		return c.status(ctx)
	}

	sc, ok := subcommands[cmd]
	if !ok {
		return fmt.Errorf("unknown migrate command %q (want one of %s)", cmd, strings.Join(Subcommands(), ", "))
	}
	var n int
	if sc.arg != "" {
		var err error
		if n, err = intArg(sc.arg, args); err != nil {
			return err
		}
	}
	done, err := sc.run(ctx, c.runner, n)
	if err != nil {
		return err
	}
	return c.version(ctx, done)
}

func intArg(name string, args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing <%s> argument", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid <%s> %q", name, args[0])
	}
	return n, nil
}

func (c *CLI) version(ctx context.Context, done string) error {
	v, dirty, err := c.runner.Version(ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	if done != "" {
		b.WriteString(done)
		b.WriteByte(' ')
	}
	if v == 0 {
		b.WriteString("No migrations applied.")
	} else {
		fmt.Fprintf(&b, "Current version: %d", v)
		if dirty {
			b.WriteString(" (dirty)")
		}
	}
	_, err = fmt.Fprintln(c.out, b.String())
	return err
}

func (c *CLI) status(ctx context.Context) error {
	rows, err := c.runner.Status(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err = fmt.Fprintln(c.out, "No migrations found.")
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	for _, s := range rows {
		state := "Pending"
		if s.Dirty {
			state = "Dirty"
		} else if s.Applied {
			state = "Applied"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	info, err := c.runner.Info(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return err
}
