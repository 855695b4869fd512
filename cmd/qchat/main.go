package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/ledzpl/qchat/internal/chat"
	"github.com/ledzpl/qchat/internal/config"
	"github.com/ledzpl/qchat/pkg/sshserver"
	"github.com/ledzpl/qchat/pkg/tcpserver"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "qchat: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	var signer ssh.Signer
	if cfg.SSHAddr != "" {
		if signer, err = sshserver.LoadOrGenerateSigner(cfg.HostKeyPath, log); err != nil {
			return fmt.Errorf("prepare host key: %w", err)
		}
	}

	server := chat.NewServer(cfg.ChatOptions(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Run(context.WithoutCancel(groupCtx))
	})

	group.Go(func() error {
		tcp := tcpserver.New(cfg.Addr, log)
		return ignoreCanceled(tcp.ListenAndServe(groupCtx, func(conn net.Conn) {
			server.HandleConn(conn, conn.RemoteAddr().String())
		}))
	})

	if signer != nil {
		group.Go(func() error {
			srv := sshserver.New(cfg.SSHAddr, signer, log)
			return ignoreCanceled(srv.ListenAndServe(groupCtx, func(channel ssh.Channel, remote string) {
				server.HandleTerminal(channel, remote)
			}))
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("qchat stopped cleanly")
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
