package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string
	cfg := defaultConfig()

	root := &cobra.Command{
		Use:   "ssocketd [flags] <script>...",
		Short: "Run scripts sharing a datagram socket multiplexer",
		Long: `ssocketd loads WebAssembly (.wasm) and JavaScript (.js) scripts and gives
them access to non-blocking UDP sockets. Datagrams received on listening
sockets are dispatched to the SSocket_OnRecv function of the script that
owns the socket, once per tick.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("capacity") {
				file.Capacity = cfg.Capacity
			}
			if flags.Changed("recv-wait") {
				file.RecvWait = cfg.RecvWait
			}
			if flags.Changed("recv-buffer-size") {
				file.RecvBufferSize = cfg.RecvBufferSize
			}
			if flags.Changed("tick") {
				file.Tick = cfg.Tick
			}
			if flags.Changed("log-level") {
				file.LogLevel = cfg.LogLevel
			}
			if flags.Changed("log-format") {
				file.LogFormat = cfg.LogFormat
			}
			if flags.Changed("trace") {
				file.Trace = cfg.Trace
			}
			file.Scripts = append(file.Scripts, args...)
			if err := file.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), file, cmd.ErrOrStderr())
		},
	}

	flags := root.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path of a TOML configuration file")
	flags.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "Number of socket slots")
	flags.IntVar(&cfg.RecvWait, "recv-wait", cfg.RecvWait, "Number of ticks skipped between socket scans (0-1000)")
	flags.IntVar(&cfg.RecvBufferSize, "recv-buffer-size", cfg.RecvBufferSize, "Maximum size of datagrams passed to scripts")
	flags.DurationVar(&cfg.Tick, "tick", cfg.Tick, "Interval between ticks")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")
	flags.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Trace socket system calls to stderr")

	root.AddCommand(newVersionCommand())
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("ssocketd", Version)
		},
	}
}
