// =============================================================================
// 🗄️ migrate 命令
// =============================================================================
// 数据库迁移管理，封装 internal/migration 的 CLI
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BaSui01/dataflow/internal/migration"
)

// runMigrate 执行数据库迁移子命令
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Migration timeout")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: dataflow migrate [options] <up|down|status|version|goto <v>|force <v>|reset>")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		os.Exit(1)
	}
	subcommand := rest[0]

	cfg := loadConfig(*configPath)

	migrator, err := migration.NewMigratorFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch subcommand {
	case "up":
		err = cli.RunUp(ctx)
	case "down":
		err = cli.RunDown(ctx)
	case "status":
		err = cli.RunStatus(ctx)
	case "version":
		err = cli.RunVersion(ctx)
	case "goto":
		version, perr := parseVersionArg(rest[1:])
		if perr != nil {
			fmt.Fprintf(os.Stderr, "migrate goto: %v\n", perr)
			os.Exit(1)
		}
		err = cli.RunGoto(ctx, uint(version))
	case "force":
		version, perr := parseVersionArg(rest[1:])
		if perr != nil {
			fmt.Fprintf(os.Stderr, "migrate force: %v\n", perr)
			os.Exit(1)
		}
		err = cli.RunForce(ctx, int(version))
	case "reset":
		err = cli.RunReset(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		fs.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// parseVersionArg 解析版本号参数
func parseVersionArg(args []string) (uint64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("version argument required")
	}
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	return version, nil
}
