package main

import (
	"fmt"
	"log"
	"os"

	"github.com/CamberLoid/Warikan/internal/clientlib"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/users"
	"github.com/google/uuid"
	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
)

// CLI
func main() {
	app := cli.App{
		Name:     "Warikan",
		HelpName: "Warikan-client",
		Version:  "0.99.indev",
		Usage:    "CLI Interface of Project Warikan/Client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "registry server URL",
				Value: clientlib.DefaultServerURL,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "uuid of the local main user",
			},
		},
		Before: func(ctx *cli.Context) error {
			clientlib.ConfigServerURL = ctx.String("server")
			return clientlib.CryptoInit()
		},
		Commands: []*cli.Command{
			cmdRegister(),
			cmdCreate(),
			cmdGet(),
			cmdList(),
			cmdSettle(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newClient 打开本地数据库并恢复主用户
func newClient(ctx *cli.Context, loadKeys bool) (c *clientlib.Client, err error) {
	db, err := clientlib.InitDatabase()
	if err != nil {
		return nil, err
	}

	mainUser := clientlib.User{User: *users.NewUser()}
	if userFlag := ctx.String("user"); userFlag != "" {
		if mainUser.UserIdentifier, err = uuid.Parse(userFlag); err != nil {
			return nil, err
		}
	}

	c = &clientlib.Client{Database: db, MainUser: mainUser}
	if loadKeys {
		if err = c.LoadMainUserKeys(); err != nil {
			return nil, fmt.Errorf("load user keys failed (run register first?): %v", err)
		}
	}
	return c, nil
}

func cmdRegister() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "generate a signing keychain and register it on the server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "user name", Required: true},
		},
		Action: func(ctx *cli.Context) error {
			c, err := newClient(ctx, false)
			if err != nil {
				return err
			}
			defer c.Database.Close()

			kc, err := key.GenECDSAKeyChain()
			if err != nil {
				return err
			}
			c.MainUser.UserName = ctx.String("name")
			c.MainUser.UserECDSAKeyChain = []key.ECDSAKeyChain{kc}

			if err = c.MainUser.RegisterUser(); err != nil {
				return err
			}
			if err = c.PersistMainUserKeys(); err != nil {
				return err
			}

			fmt.Println("registered, uuid =", c.MainUser.UserIdentifier.String())
			return nil
		},
	}
}

func cmdCreate() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "create a subscription group with an encrypted per-member share",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "group identifier", Required: true},
			&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
			&cli.UintFlag{Name: "share", Usage: "per-member share amount in cents", Required: true},
			&cli.Uint64Flag{Name: "members", Usage: "member count", Required: true},
			&cli.Uint64Flag{Name: "total", Usage: "public total amount in cents"},
			&cli.StringFlag{Name: "description", Usage: "description"},
		},
		Action: func(ctx *cli.Context) error {
			share, err := clientlib.ShareAmountFromUint(uint64(ctx.Uint("share")))
			if err != nil {
				return err
			}

			c, err := newClient(ctx, true)
			if err != nil {
				return err
			}
			defer c.Database.Close()

			return c.CreateSubscriptionGroup(
				ctx.String("group"),
				ctx.String("name"),
				ctx.String("description"),
				share,
				ctx.Uint64("members"),
				ctx.Uint64("total"),
			)
		},
	}
}

func cmdGet() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "fetch a subscription group record",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "group identifier", Required: true},
		},
		Action: func(ctx *cli.Context) error {
			g, err := clientlib.GetGroupFromServer(ctx.String("group"))
			if err != nil {
				return err
			}
			// 密文太长，打印时略去
			g.EncryptedAmount = nil
			pretty.Println(g)
			return nil
		},
	}
}

func cmdList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list all group identifiers in creation order",
		Action: func(ctx *cli.Context) error {
			ids, err := clientlib.GetAllGroupIDsFromServer()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func cmdSettle() *cli.Command {
	return &cli.Command{
		Name:  "settle",
		Usage: "request oracle decryption and verify the amount on the registry",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "group identifier", Required: true},
		},
		Action: func(ctx *cli.Context) error {
			c, err := newClient(ctx, false)
			if err != nil {
				return err
			}
			defer c.Database.Close()

			amount, err := c.SettleGroup(ctx.String("group"))
			if err != nil {
				return err
			}
			fmt.Printf("verified, per-member share = %d\n", amount)
			return nil
		},
	}
}
