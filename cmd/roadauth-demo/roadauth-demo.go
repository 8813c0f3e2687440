// Command roadauth-demo runs the full pairing scheme in process: a trust
// authority issues credentials to a fleet of vehicles, every vehicle then
// pairs with a verifier over a shared broadcast medium.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"code.roadauth.org/golang/internal/channel"
	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/pkg/authority"
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/protocols"
	"code.roadauth.org/golang/pkg/protocols/pairing"
	"code.roadauth.org/golang/pkg/suite"
	"code.roadauth.org/golang/pkg/vehicle"
	"code.roadauth.org/golang/pkg/vehicle/boltdb"
)

const usageFmt = `
Command Usage: %s [Flags]
  Run the vehicle pairing scheme end to end.

Flags:
------
`

type Cmd struct {
	NumVehicle int
	Payload    string
	DbPath     string
	Verbose    bool
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	flags.IntVar(&cmd.NumVehicle, "n", 3, "number of vehicles to register and pair")
	flags.StringVar(&cmd.Payload, "payload", "secret-42", "agreed payload the verifier proves knowledge of")
	flags.StringVar(&cmd.DbPath, "db", "", "persist vehicle credentials in a boltdb file at this path")
	flags.BoolVar(&cmd.Verbose, "v", false, "enable debug logging")

	flags.Parse(args)

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	level := slog.LevelInfo
	if cmd.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := observability.SetObservability(context.Background(), &observability.Observability{Logger: log})

	err := run(ctx, cmd, log)
	if nil != err {
		log.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *Cmd, log *slog.Logger) error {

	// stand up the trust authority
	provisionKey := make([]byte, suite.KeySize)
	rand.Read(provisionKey) // rand.Read can not fail
	ta, err := authority.New(authority.Cfg{ProvisionKey: provisionKey})
	if nil != err {
		return fmt.Errorf("failed creating authority, got error %w", err)
	}
	log.Info("authority ready", "publicKey", hex.EncodeToString(ta.PublicKey()))

	// group key pre shared by the vehicle cohort
	groupKey := make([]byte, suite.KeySize)
	rand.Read(groupKey)

	// pick the vehicle credential store
	var store vehicle.CredStore
	if "" != cmd.DbPath {
		store, err = boltdb.New(cmd.DbPath)
		if nil != err {
			return fmt.Errorf("failed opening credential store, got error %w", err)
		}
		log.Info("persisting credentials", "path", cmd.DbPath)
	} else {
		store = vehicle.NewMemCredStore()
	}

	// register the fleet over the provisioning channel
	creds := make([]vehicle.Credential, cmd.NumVehicle)
	for i := range cmd.NumVehicle {
		bus := channel.NewBus()
		taFeed, err := bus.Join("authority")
		if nil != err {
			return fmt.Errorf("failed joining authority, got error %w", err)
		}
		rvFeed, err := bus.Join("vehicle")
		if nil != err {
			return fmt.Errorf("failed joining vehicle, got error %w", err)
		}

		served := make(chan error, 1)
		go func() {
			served <- ta.ServeOnce(ctx, taFeed)
		}()

		id := cert.Identity(suite.ScalarFromUint64(uint64(1 + i)))
		creds[i], err = vehicle.Register(ctx, rvFeed, provisionKey, id, ta.PublicKey(), store)
		if nil != err {
			return fmt.Errorf("failed registering vehicle %d, got error %w", i, err)
		}
		if err = <-served; nil != err {
			return fmt.Errorf("failed serving registration %d, got error %w", i, err)
		}
		bus.Close()
		log.Info("vehicle registered", "vehicle", i)
	}

	// pair every vehicle with the verifier over one broadcast medium
	bus := channel.NewBus()
	uFeed, err := bus.Join("verifier")
	if nil != err {
		return fmt.Errorf("failed joining verifier, got error %w", err)
	}

	milestones := pairing.NewMilestones()
	responder, err := pairing.NewResponder(pairing.VerifierCfg{
		AuthorityKey: ta.PublicKey(),
		GroupKey:     groupKey,
		Payload:      []byte(cmd.Payload),
		Milestones:   milestones,
	})
	if nil != err {
		return fmt.Errorf("failed creating responder, got error %w", err)
	}
	served := make(chan error, 1)
	go func() {
		served <- responder.Run(ctx, uFeed)
	}()

	type outcome struct {
		vehicle int
		state   *pairing.RegistrantState
		err     error
	}
	outcomes := make(chan outcome, cmd.NumVehicle)
	for i := range cmd.NumVehicle {
		feed, err := bus.Join(fmt.Sprintf("vehicle-%d", i))
		if nil != err {
			return fmt.Errorf("failed joining vehicle %d, got error %w", i, err)
		}
		state, err := pairing.NewRegistrantState(pairing.RegistrantCfg{
			Cred:     creds[i],
			GroupKey: groupKey,
			Payload:  []byte(cmd.Payload),
		})
		if nil != err {
			return fmt.Errorf("failed creating registrant %d, got error %w", i, err)
		}
		go func() {
			err := protocols.Run(ctx, state, pairing.SessionTransport(feed, state))
			outcomes <- outcome{vehicle: i, state: state, err: err}
		}()
	}

	for range cmd.NumVehicle {
		oc := <-outcomes
		if nil != oc.err {
			return fmt.Errorf("failed pairing vehicle %d, got error %w", oc.vehicle, oc.err)
		}
		log.Info("vehicle paired",
			"vehicle", oc.vehicle,
			"tag", oc.state.Tag(),
			"sessionKey", hex.EncodeToString(oc.state.SessionKey()),
		)
	}

	bus.Close()
	if err = <-served; nil != err {
		return fmt.Errorf("failed responder run, got error %w", err)
	}

	started, completed := milestones.Counts()
	log.Info("pairing campaign finished", "started", started, "completed", completed)

	return nil
}
