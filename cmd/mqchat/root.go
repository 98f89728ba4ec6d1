package main

import (
	"context"
	"flag"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/nutanix/mq-client-go-sdk/client"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cfg := client.ConfigFromEnv()
	var topics []string

	rootCmd := &cobra.Command{
		Use:           "mqchat",
		Short:         "Interactive chat over the message queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog checks that the standard flag set has been parsed
			return flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer glog.Flush()
			return runChat(cmd.Context(), cfg, topics, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.Name, "name", "n", cfg.Name, "Client name messages are delivered to")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Message queue server host")
	flags.StringVarP(&cfg.Port, "port", "p", cfg.Port, "Message queue server port")
	flags.StringVar(&cfg.PushGateway, "push-gateway", cfg.PushGateway, "Prometheus push gateway for client metrics")
	flags.StringSliceVarP(&topics, "topic", "t", nil, "Topic to subscribe to on startup (repeatable)")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	return rootCmd
}

// runChat runs one chat session: messages are printed as they arrive while commands are read from
// in until exit or EOF
func runChat(ctx context.Context, cfg client.Config, topics []string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	for _, topic := range topics {
		c.Subscribe(topic)
	}
	if err := c.Start(); err != nil {
		return err
	}

	w := &syncWriter{w: out}
	var listener sync.WaitGroup
	listener.Add(1)
	go func() {
		defer listener.Done()
		listen(ctx, c, w)
	}()

	shellErr := newShell(c, w).run(in)

	if err := c.Stop(); err != nil {
		glog.Errorf("Failed to stop client: %s", err.Error())
	}
	listener.Wait()
	if err := c.Destroy(); err != nil {
		return err
	}
	return shellErr
}
