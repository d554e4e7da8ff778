package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oprf-network/oprf-node/cmd"
	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/engine/oprf/auth"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module/connector"
	"github.com/oprf-network/oprf-node/module/toprf"
	"github.com/oprf-network/oprf-node/utils/logging"
)

var (
	flagConfig    string
	flagServices  []string
	flagModule    string
	flagThreshold int
	flagKeyID     string
	flagEpoch     uint64
	flagInput     string
	flagHexInput  bool
	flagPublicKey string
	flagSecure    bool
	flagSignerKey string
	flagTokenTTL  time.Duration
	flagTimeout   time.Duration
	flagLogLevel  string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "oprf-client",
	Short:         "Evaluate an input under a threshold-shared OPRF key",
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(command *cobra.Command, _ []string) error {
		return cmd.BindConfig(command.Flags(), flagConfig)
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfig, "config", "", "path of an optional config file")
	flags.StringSliceVar(&flagServices, "services", nil, "node addresses, position i holds party i+1")
	flags.StringVar(&flagModule, "module", "default", "module of the evaluation")
	flags.IntVar(&flagThreshold, "threshold", 0, "number of nodes required for an evaluation")
	flags.StringVar(&flagKeyID, "key-id", "", "hex key id")
	flags.Uint64Var(&flagEpoch, "epoch", 1, "share epoch")
	flags.StringVar(&flagInput, "input", "", "input to evaluate")
	flags.BoolVar(&flagHexInput, "hex", false, "decode the input as hex")
	flags.StringVar(&flagPublicKey, "public-key", "", "optional hex public key the nodes must answer for")
	flags.BoolVar(&flagSecure, "secure", false, "dial nodes given as host:port with wss")
	flags.StringVar(&flagSignerKey, "signer-key", "", "hex secp256k1 key signing the request token, if the nodes require one")
	flags.DurationVar(&flagTokenTTL, "token-ttl", time.Minute, "validity of the request token")
	flags.DurationVar(&flagTimeout, "timeout", 30*time.Second, "timeout of the evaluation")
	flags.StringVar(&flagLogLevel, "loglevel", "warn", "level for logging output")
	flags.BoolVar(&flagVerbose, "verbose", false, "print the proof along with the output")
	_ = rootCmd.MarkFlagRequired("services")
	_ = rootCmd.MarkFlagRequired("threshold")
	_ = rootCmd.MarkFlagRequired("key-id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !cmd.IsLogged(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(command *cobra.Command, _ []string) error {
	logConfig := logging.DefaultConfig()
	logConfig.Level = flagLogLevel
	log, closer, err := logging.New(logConfig, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	keyID, err := oprf.HexToKeyID(flagKeyID)
	if err != nil {
		return err
	}
	input := []byte(flagInput)
	if flagHexInput {
		if input, err = hex.DecodeString(flagInput); err != nil {
			return fmt.Errorf("could not decode input: %w", err)
		}
	}

	var opts []toprf.Option
	if flagPublicKey != "" {
		publicKey, err := decodePublicKey(flagPublicKey)
		if err != nil {
			return err
		}
		opts = append(opts, toprf.WithExpectedPublicKey(publicKey))
	}
	client, err := toprf.NewClient(log, flagServices, flagModule, flagThreshold, connector.NewWebsocketConnector(flagSecure, nil), opts...)
	if err != nil {
		return err
	}

	token, err := requestToken(keyID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(command.Context(), flagTimeout)
	defer cancel()
	output, err := client.EvaluateVerifiable(ctx, keyID, oprf.ShareEpoch(flagEpoch), crypto.QueryFromBytes(input), token)
	if errors.Is(err, toprf.ErrProofVerification) {
		// logged by the evaluation together with the nodes involved
		return cmd.Logged(err)
	}
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(output.Output.Encode()))
	if flagVerbose {
		printProof(log, output)
	}
	return nil
}

func decodePublicKey(s string) (*crypto.Element, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("could not decode public key: %w", err)
	}
	return crypto.DecodeNonIdentityElement(b)
}

func requestToken(keyID oprf.KeyID) (json.RawMessage, error) {
	if flagSignerKey == "" {
		return nil, nil
	}
	key, err := ethcrypto.HexToECDSA(flagSignerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return auth.SignToken(key, flagModule, keyID, oprf.ShareEpoch(flagEpoch), time.Now().Add(flagTokenTTL))
}

func printProof(log zerolog.Logger, output *oprf.VerifiableOutput) {
	fmt.Printf("public key:       %s\n", output.PublicKey)
	fmt.Printf("blinded request:  %s\n", output.BlindedRequest)
	fmt.Printf("blinded response: %s\n", output.BlindedResponse)
	fmt.Printf("proof:            %s\n", hex.EncodeToString(output.Proof.Encode()))
	if !output.Verify() {
		log.Error().Msg("proof of the output does not verify")
	}
}
