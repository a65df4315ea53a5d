package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-topology-go/internal/backend/awsapi"
)

func newZonesCmd(a *app) *cobra.Command {
	var (
		region  string
		profile string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Print the availability zone catalog",
		Long: `Zones prints the zones that slot ordinals map to. Ordinal 0 is the
first zone listed for a region.

--refresh replaces the built-in table with the zones EC2 reports as
available for the account.

Examples:
    wetwire-topology zones
    wetwire-topology zones --region ap-northeast-1 --refresh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runZones(cmd.Context(), a, region, profile, refresh, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Only show this region")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS shared config profile for --refresh")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ask EC2 for the available zones")

	return cmd
}

func runZones(ctx context.Context, a *app, region, profile string, refresh bool, w io.Writer) error {
	settings := a.settings.Merge(profile, region)
	region = settings.Region

	if refresh {
		if region == "" {
			return fmt.Errorf("--refresh needs --region")
		}
		cfg, err := awsapi.LoadConfig(ctx, settings.Profile, region)
		if err != nil {
			return err
		}
		if err := a.catalog.Refresh(ctx, ec2.NewFromConfig(cfg), region); err != nil {
			return err
		}
	}

	regions := a.catalog.Regions()
	if region != "" {
		if a.catalog.Available(region) == 0 {
			return fmt.Errorf("unknown region %s", region)
		}
		regions = []string{region}
	}

	for _, r := range regions {
		fmt.Fprintf(w, "%-16s %s\n", r, strings.Join(a.catalog.Zones(r), " "))
	}
	return nil
}
