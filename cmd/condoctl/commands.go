package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/subcommands"
	finedomain "github.com/smallbiznis/condoledger/internal/fine/domain"
	"github.com/smallbiznis/condoledger/internal/identity"
	rentdomain "github.com/smallbiznis/condoledger/internal/rent/domain"
	"github.com/smallbiznis/condoledger/pkg/period"
)

type generateRentCmd struct {
	period    string
	residency string
}

func (*generateRentCmd) Name() string { return "generate-rent" }
func (*generateRentCmd) Synopsis() string {
	return "generate the monthly rent charges for a period"
}
func (*generateRentCmd) Usage() string {
	return `condoctl generate-rent [-period YYYY-MM] [-residency <id>]

  Adds the rent charge line of every active rental residency for the period.
  Residencies already charged are skipped, so the command can be re-run.
`
}

func (c *generateRentCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Billing period to generate (defaults to the current month).")
	f.StringVar(&c.residency, "residency", "", "Generate for a single residency only.")
}

func (c *generateRentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	value := strings.TrimSpace(c.period)
	if value == "" {
		value = period.Of(time.Now().UTC()).String()
	}
	var residencyID snowflake.ID
	if c.residency != "" {
		id, err := snowflake.ParseString(c.residency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid residency id %q\n", c.residency)
			return subcommands.ExitUsageError
		}
		residencyID = id
	}

	var svc rentdomain.Service
	ctx = identity.WithPrincipal(ctx, identity.System())
	err := withApp(ctx, func() error {
		if residencyID != 0 {
			outcome, err := svc.GenerateForPeriod(ctx, residencyID, value)
			if err != nil {
				return err
			}
			if outcome.Skipped {
				fmt.Printf("residency %s skipped: %s\n", residencyID, outcome.Reason)
				return nil
			}
			fmt.Printf("residency %s charged %s (line %s)\n", residencyID, outcome.Line.Amount.StringFixed(2), outcome.Line.ID)
			return nil
		}

		result, err := svc.GenerateBatch(ctx, value)
		if err != nil {
			return err
		}
		fmt.Printf("period %s: processed=%d generated=%d skipped=%d failed=%d\n",
			result.Period, result.Processed, result.Generated, result.Skipped, result.Failed)
		for _, failure := range result.Failures {
			fmt.Printf("  residency %s: %s (%s)\n", failure.ResidencyID, failure.Code, failure.Message)
		}
		return nil
	}, &svc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type convertFineCmd struct {
	id string
}

func (*convertFineCmd) Name() string     { return "convert-fine" }
func (*convertFineCmd) Synopsis() string { return "convert a pending fine into a charge line" }
func (*convertFineCmd) Usage() string {
	return `condoctl convert-fine -id <fine id>

  Books the fine amount on the residency's billing period for the current
  month and marks the fine as converted.
`
}

func (c *convertFineCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Identifier of the fine to convert.")
}

func (c *convertFineCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fineID, err := snowflake.ParseString(strings.TrimSpace(c.id))
	if err != nil || fineID <= 0 {
		fmt.Fprintln(os.Stderr, "a valid -id is required")
		return subcommands.ExitUsageError
	}

	var svc finedomain.Service
	ctx = identity.WithPrincipal(ctx, identity.System())
	err = withApp(ctx, func() error {
		line, err := svc.Convert(ctx, fineID)
		if err != nil {
			return err
		}
		fmt.Printf("fine %s converted: line %s amount %s\n", fineID, line.ID, line.Amount.StringFixed(2))
		return nil
	}, &svc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
