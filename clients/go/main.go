// chatrelay CLI - command line client for the chat relay
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/clients/go/chatrelay"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := chatrelay.NewClient(os.Getenv("CHATRELAY_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "wallet":
		if len(os.Args) < 3 {
			fmt.Println(client.Wallet)
			return
		}
		client.Wallet = os.Args[2]
		exitOnError(client.SaveConfig())
		fmt.Printf("Default wallet: %s\n", client.Wallet)

	case "access":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chatrelay access <collection> <wallet>[,<wallet>...]")
			os.Exit(1)
		}
		ok, err := client.VerifyAccess(ctx, strings.Split(os.Args[3], ","), os.Args[2])
		exitOnError(err)
		fmt.Printf("has access: %t\n", ok)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatrelay read <group|collection>")
			os.Exit(1)
		}
		resp, err := client.FetchMessages(ctx, os.Args[2])
		exitOnError(err)
		for _, msg := range resp.Messages {
			ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
			from := msg.Sender
			if len(from) > 10 && !msg.IsBot {
				from = from[:10]
			}
			fmt.Printf("#%d [%s] %s: %s\n", msg.ID, ts, from, msg.Content)
		}

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chatrelay send <group|collection> <message>")
			os.Exit(1)
		}
		req := chatrelay.SendRequest{Content: os.Args[3]}
		if strings.HasPrefix(req.Content, "/") {
			req.Kind = "command"
		}
		msg, err := client.SendMessage(ctx, os.Args[2], req)
		exitOnError(err)
		fmt.Printf("Sent: #%d\n", msg.ID)

	case "preview":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatrelay preview <collection>")
			os.Exit(1)
		}
		resp, err := client.CollectionPreview(ctx, os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`chatrelay CLI - token-gated collection chat

Usage: chatrelay <command> [options]

Commands:
  wallet [address]                 Show or set the default sender wallet
  access <collection> <wallets>    Check whether any wallet holds the collection
  read <group|collection>          Read a group's messages
  send <group|collection> <msg>    Send a message (a leading / sends a command)
  preview <collection>             Show collection metadata
  health                           Check server health

Environment:
  CHATRELAY_URL      Server URL (default: http://localhost:8080)
  CHATRELAY_CONFIG   Config directory (default: ~/.chatrelay)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
