package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"omapid/config"
	"omapid/result"
	"omapid/tcp"
	"omapid/util/buffer"
	"omapid/util/log"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var banner = `
                              _     __
  ____  ____ ___  ____ _____ (_)___/ /
 / __ \/ __ '__ \/ __ '/ __ \/ / __  /
/ /_/ / / / / / / /_/ / /_/ / / /_/ /
\____/_/ /_/ /_/\__,_/ .___/_/\__,_/
                    /_/    v1.0-SNAPSHOT`

const defaultConfigFile = "./omapid.conf"

var (
	configFile string
	engine     string
	bind       string
	port       int
)

var rootCmd = &cobra.Command{
	Use:           "omapid",
	Short:         "OMAPI connection buffering server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept OMAPI connections and mirror their bytes",
	Long: `Accept OMAPI control connections and echo every byte back through the
connection buffering layer.

Settings are read from --config (a .yaml/.yml file or "key value" lines),
falling back to ./omapid.conf when it exists. Flags override the file.

Examples:
  omapid serve
  omapid serve -c omapid.yaml --engine gnet
  omapid serve --port 7912`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadProperties(cmd); err != nil {
			return err
		}
		props := config.Properties

		level, _ := log.ParseLevel(props.LogLevel)
		log.SetLevel(level)
		if props.LogFile != "" {
			closer := log.SetFile(props.LogFile, props.LogMaxSize)
			defer closer.Close()
		}

		var alloc buffer.Allocator = buffer.Heap
		if props.MaxBufferNodes > 0 {
			alloc = buffer.NewBoundedAllocator(props.MaxBufferNodes)
		}
		fmt.Println(banner)
		log.Info("engine %s, %d io workers, max buffer nodes %d", props.Engine, props.IOWorkers, props.MaxBufferNodes)
		return tcp.ListenAndServe(props.Address(), tcp.Options{
			Engine:    props.Engine,
			IOWorkers: props.IOWorkers,
			Multicore: props.Multicore,
			PprofPort: props.PprofPort,

			IdleTimeout: time.Duration(props.IdleTimeout) * time.Second,
		}, tcp.Mirror{}, alloc)
	},
}

var errnoCmd = &cobra.Command{
	Use:   "errno <number>",
	Short: "Show the result code an OS error number translates to",
	Long: `Show the result code an OS error number translates to.

Examples:
  omapid errno 104
  omapid errno 32`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid errno %q", args[0])
		}
		errno := unix.Errno(n)
		name := unix.ErrnoName(errno)
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d (%s): %s\n", n, name, result.Translate(errno))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	serveCmd.Flags().StringVar(&engine, "engine", "", "event engine: epoll or gnet")
	serveCmd.Flags().StringVar(&bind, "bind", "", "listen address")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	rootCmd.AddCommand(serveCmd, errnoCmd)
}

func loadProperties(cmd *cobra.Command) error {
	path := configFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		if err := config.LoadConfigs(path); err != nil {
			return err
		}
	}
	props := config.Properties
	if cmd.Flags().Changed("engine") {
		props.Engine = engine
	}
	if cmd.Flags().Changed("bind") {
		props.Bind = bind
	}
	if cmd.Flags().Changed("port") {
		props.Port = port
	}
	return props.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "omapid:", err)
		os.Exit(1)
	}
}
