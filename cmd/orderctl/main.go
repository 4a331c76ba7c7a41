// Command orderctl is a back-office client for the order admin RPC service.
//
//	orderctl get <order-id>
//	orderctl list [--status CREATED]
//	orderctl update <order-id> <status>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/discovery"
	"github.com/example/localdelivery/pkg/grpc"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the config file")
	target := pflag.StringP("target", "t", "", "admin service address, skips discovery")
	statusFilter := pflag.String("status", "", "filter for list")
	timeout := pflag.Duration("timeout", 10*time.Second, "request timeout")
	verbose := pflag.BoolP("verbose", "v", false, "log connection details")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: orderctl [flags] get <id> | list | update <id> <status>\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if err := run(*configPath, *target, *statusFilter, *timeout, *verbose, pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "orderctl:", err)
		os.Exit(1)
	}
}

func run(configPath, target, statusFilter string, timeout time.Duration, verbose bool, args []string) error {
	if len(args) == 0 {
		pflag.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer logger.Sync()

	var disc grpc.Discoverer
	if target == "" && cfg.Etcd.Enabled() {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Discovery unavailable", zap.Error(err))
		} else {
			defer sd.Close()
			disc = sd
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cm := grpc.NewClientManager(cfg, logger, disc)
	if err := cm.Connect(ctx, target); err != nil {
		return err
	}
	defer cm.Close()

	req, call, err := buildCall(cm.AdminClient(), args, statusFilter)
	if err != nil {
		return err
	}
	reply, err := call(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(reply.AsMap(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type callFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func buildCall(client *grpc.OrderAdminClient, args []string, statusFilter string) (*structpb.Struct, callFunc, error) {
	var (
		fields map[string]interface{}
		call   callFunc
	)

	switch args[0] {
	case "get":
		if len(args) != 2 {
			return nil, nil, fmt.Errorf("usage: orderctl get <order-id>")
		}
		fields = map[string]interface{}{"id": args[1]}
		call = func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return client.GetOrder(ctx, req)
		}
	case "list":
		fields = map[string]interface{}{"status": statusFilter}
		call = func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return client.ListOrders(ctx, req)
		}
	case "update":
		if len(args) != 3 {
			return nil, nil, fmt.Errorf("usage: orderctl update <order-id> <status>")
		}
		fields = map[string]interface{}{"id": args[1], "status": args[2]}
		call = func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return client.UpdateOrderStatus(ctx, req)
		}
	default:
		return nil, nil, fmt.Errorf("unknown command %q", args[0])
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, nil, err
	}
	return req, call, nil
}
