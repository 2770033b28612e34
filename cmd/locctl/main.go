package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/famkit/location-sharing-backend/api/clients"
	"github.com/famkit/location-sharing-backend/cmd/flags"
	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/famkit/location-sharing-backend/locationcrypto"
	"github.com/urfave/cli/v2"
)

var familyIDFlag = &cli.StringFlag{
	Name:     "family-id",
	Required: true,
	Usage:    "family identifier (f_ prefixed)",
}

var keyFlag = &cli.StringFlag{
	Name:  "key",
	Usage: "base64 family key, derived from the family identifier when omitted",
}

func main() {
	app := &cli.App{
		Name:  "locctl",
		Usage: "Client for the family location sharing service",
		Flags: []cli.Flag{flags.ServerAddrFlag},
		Commands: []*cli.Command{
			{
				Name:  "create-family",
				Usage: "Create a new family and print its identifier and connection code",
				Action: func(cCtx *cli.Context) error {
					client := newClient(cCtx)
					resp, err := client.CreateFamily(nil)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a connection code to a family identifier",
				ArgsUsage: "<connection-code>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected exactly one connection code argument")
					}
					client := newClient(cCtx)
					resp, err := client.ResolveCode(cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "derive-key",
				Usage: "Derive the family encryption key from a family identifier",
				Flags: []cli.Flag{familyIDFlag},
				Action: func(cCtx *cli.Context) error {
					key, err := locationcrypto.DeriveKey(cCtx.String(familyIDFlag.Name))
					if err != nil {
						return err
					}
					fmt.Println(key)
					return nil
				},
			},
			{
				Name:  "encrypt",
				Usage: "Encrypt a location reading into an envelope without uploading it",
				Flags: []cli.Flag{
					familyIDFlag,
					keyFlag,
					&cli.Float64Flag{Name: "lat", Required: true, Usage: "latitude in degrees"},
					&cli.Float64Flag{Name: "lon", Required: true, Usage: "longitude in degrees"},
					&cli.StringFlag{Name: "address", Usage: "human-readable address"},
				},
				Action: func(cCtx *cli.Context) error {
					key, err := resolveKey(cCtx)
					if err != nil {
						return err
					}
					envelope, err := locationcrypto.Encrypt(locationcrypto.LocationReading{
						Latitude:  cCtx.Float64("lat"),
						Longitude: cCtx.Float64("lon"),
						Address:   cCtx.String("address"),
					}, key)
					if err != nil {
						return err
					}
					return printJSON(envelope)
				},
			},
			{
				Name:  "decrypt",
				Usage: "Decrypt an envelope and print the location reading",
				Flags: []cli.Flag{
					familyIDFlag,
					keyFlag,
					&cli.StringFlag{Name: "ciphertext", Required: true, Usage: "base64 ciphertext"},
					&cli.StringFlag{Name: "iv", Required: true, Usage: "base64 initialization vector"},
				},
				Action: func(cCtx *cli.Context) error {
					key, err := resolveKey(cCtx)
					if err != nil {
						return err
					}
					reading, err := locationcrypto.Decrypt(locationcrypto.EncryptedEnvelope{
						Ciphertext: cCtx.String("ciphertext"),
						IV:         cCtx.String("iv"),
					}, key)
					if err != nil {
						return err
					}
					return printJSON(reading)
				},
			},
			{
				Name:  "share",
				Usage: "Encrypt a location reading and upload the envelope",
				Flags: []cli.Flag{
					familyIDFlag,
					keyFlag,
					&cli.Float64Flag{Name: "lat", Required: true, Usage: "latitude in degrees"},
					&cli.Float64Flag{Name: "lon", Required: true, Usage: "longitude in degrees"},
					&cli.StringFlag{Name: "address", Usage: "human-readable address"},
				},
				Action: func(cCtx *cli.Context) error {
					key, err := resolveKey(cCtx)
					if err != nil {
						return err
					}
					envelope, err := locationcrypto.Encrypt(locationcrypto.LocationReading{
						Latitude:  cCtx.Float64("lat"),
						Longitude: cCtx.Float64("lon"),
						Address:   cCtx.String("address"),
					}, key)
					if err != nil {
						return err
					}

					client := newClient(cCtx)
					err = client.UpdateLocation(cCtx.String(familyIDFlag.Name), interfaces.LocationEnvelope{
						Ciphertext: envelope.Ciphertext,
						IV:         envelope.IV,
					})
					if err != nil {
						return err
					}
					fmt.Println("location shared")
					return nil
				},
			},
			{
				Name:  "fetch",
				Usage: "Download the stored envelope and decrypt it",
				Flags: []cli.Flag{familyIDFlag, keyFlag},
				Action: func(cCtx *cli.Context) error {
					key, err := resolveKey(cCtx)
					if err != nil {
						return err
					}

					client := newClient(cCtx)
					resp, err := client.GetLocation(cCtx.String(familyIDFlag.Name))
					if err != nil {
						return err
					}

					reading, err := locationcrypto.Decrypt(locationcrypto.EncryptedEnvelope{
						Ciphertext: resp.Ciphertext,
						IV:         resp.IV,
					}, key)
					if err != nil {
						return err
					}
					return printJSON(struct {
						locationcrypto.LocationReading
						UpdatedAt string `json:"updated_at,omitempty"`
					}{reading, resp.UpdatedAt})
				},
			},
			{
				Name:      "approve",
				Usage:     "Set the approval status (pending, approved, revoked)",
				ArgsUsage: "<status>",
				Flags:     []cli.Flag{familyIDFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected exactly one status argument")
					}
					status := interfaces.ApprovalStatus(cCtx.Args().First())
					if !status.Valid() {
						return fmt.Errorf("unknown approval status: %s", status)
					}

					client := newClient(cCtx)
					return client.SetApproval(cCtx.String(familyIDFlag.Name), status)
				},
			},
			{
				Name:  "settings",
				Usage: "Update the family's sharing settings",
				Flags: []cli.Flag{
					familyIDFlag,
					&cli.BoolFlag{Name: "sharing-enabled", Value: true, Usage: "whether location sharing is active"},
					&cli.IntFlag{Name: "update-interval", Value: 300, Usage: "location update interval in seconds"},
				},
				Action: func(cCtx *cli.Context) error {
					client := newClient(cCtx)
					return client.UpdateSettings(cCtx.String(familyIDFlag.Name), interfaces.FamilySettings{
						SharingEnabled:        cCtx.Bool("sharing-enabled"),
						UpdateIntervalSeconds: cCtx.Int("update-interval"),
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.FamilyClient {
	return &clients.FamilyClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
}

// resolveKey uses an explicit --key when given, otherwise derives the key
// from the family identifier.
func resolveKey(cCtx *cli.Context) (string, error) {
	if key := cCtx.String(keyFlag.Name); key != "" {
		return key, nil
	}
	return locationcrypto.DeriveKey(cCtx.String(familyIDFlag.Name))
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
