// Package azselect maps a zero-based zone ordinal to an availability zone name.
//
// Selection is a pure lookup in a zone catalog so that repeated compositions
// produce the same zones. The catalog ships with a static region table and can
// be refreshed from EC2 before composing.
package azselect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// Selector returns the zone for ordinal k in region.
type Selector interface {
	Select(region string, k int) (string, error)
	Available(region string) int
}

// staticZones lists the zones open to new accounts in each region, sorted.
var staticZones = map[string][]string{
	"af-south-1":     {"af-south-1a", "af-south-1b", "af-south-1c"},
	"ap-east-1":      {"ap-east-1a", "ap-east-1b", "ap-east-1c"},
	"ap-northeast-1": {"ap-northeast-1a", "ap-northeast-1c", "ap-northeast-1d"},
	"ap-northeast-2": {"ap-northeast-2a", "ap-northeast-2b", "ap-northeast-2c", "ap-northeast-2d"},
	"ap-northeast-3": {"ap-northeast-3a", "ap-northeast-3b", "ap-northeast-3c"},
	"ap-south-1":     {"ap-south-1a", "ap-south-1b", "ap-south-1c"},
	"ap-southeast-1": {"ap-southeast-1a", "ap-southeast-1b", "ap-southeast-1c"},
	"ap-southeast-2": {"ap-southeast-2a", "ap-southeast-2b", "ap-southeast-2c"},
	"ca-central-1":   {"ca-central-1a", "ca-central-1b", "ca-central-1d"},
	"eu-central-1":   {"eu-central-1a", "eu-central-1b", "eu-central-1c"},
	"eu-north-1":     {"eu-north-1a", "eu-north-1b", "eu-north-1c"},
	"eu-south-1":     {"eu-south-1a", "eu-south-1b", "eu-south-1c"},
	"eu-west-1":      {"eu-west-1a", "eu-west-1b", "eu-west-1c"},
	"eu-west-2":      {"eu-west-2a", "eu-west-2b", "eu-west-2c"},
	"eu-west-3":      {"eu-west-3a", "eu-west-3b", "eu-west-3c"},
	"me-south-1":     {"me-south-1a", "me-south-1b", "me-south-1c"},
	"sa-east-1":      {"sa-east-1a", "sa-east-1b", "sa-east-1c"},
	"us-east-1":      {"us-east-1a", "us-east-1b", "us-east-1c", "us-east-1d", "us-east-1e", "us-east-1f"},
	"us-east-2":      {"us-east-2a", "us-east-2b", "us-east-2c"},
	"us-west-1":      {"us-west-1a", "us-west-1c"},
	"us-west-2":      {"us-west-2a", "us-west-2b", "us-west-2c", "us-west-2d"},
}

// Catalog is a Selector backed by a region → zones table.
type Catalog struct {
	mu    sync.RWMutex
	zones map[string][]string
}

// NewCatalog returns a catalog seeded with the static region table.
func NewCatalog() *Catalog {
	c := &Catalog{zones: make(map[string][]string, len(staticZones))}
	for region, zones := range staticZones {
		c.zones[region] = append([]string(nil), zones...)
	}
	return c
}

// Select returns the k-th zone of region.
func (c *Catalog) Select(region string, k int) (string, error) {
	c.mu.RLock()
	zones, ok := c.zones[region]
	c.mu.RUnlock()

	if !ok {
		return "", topoerr.Configf("no zone catalog for region %q", region)
	}
	if k < 0 || k >= len(zones) {
		return "", topoerr.Configf("zone ordinal %d out of range: region %s has %d zones", k, region, len(zones))
	}
	return zones[k], nil
}

// Available returns the number of zones known for region.
func (c *Catalog) Available(region string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.zones[region])
}

// Zones returns a copy of region's zone list.
func (c *Catalog) Zones(region string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.zones[region]...)
}

// Set replaces the zones of region. Zones are stored sorted.
func (c *Catalog) Set(region string, zones []string) {
	sorted := append([]string(nil), zones...)
	sort.Strings(sorted)

	c.mu.Lock()
	c.zones[region] = sorted
	c.mu.Unlock()
}

// ZonesAPI is the subset of the EC2 client used to refresh the catalog.
type ZonesAPI interface {
	DescribeAvailabilityZones(ctx context.Context, params *awsec2.DescribeAvailabilityZonesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeAvailabilityZonesOutput, error)
}

// Refresh replaces region's zones with the available zones reported by EC2.
func (c *Catalog) Refresh(ctx context.Context, api ZonesAPI, region string) error {
	out, err := api.DescribeAvailabilityZones(ctx, &awsec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("region-name"), Values: []string{region}},
			{Name: aws.String("zone-type"), Values: []string{"availability-zone"}},
		},
	})
	if err != nil {
		return fmt.Errorf("DescribeAvailabilityZones: %w", err)
	}

	var zones []string
	for _, z := range out.AvailabilityZones {
		if z.State != ec2types.AvailabilityZoneStateAvailable {
			continue
		}
		if name := aws.ToString(z.ZoneName); name != "" {
			zones = append(zones, name)
		}
	}
	if len(zones) == 0 {
		return topoerr.Configf("EC2 reported no available zones in %s", region)
	}

	c.Set(region, zones)
	return nil
}

// Regions returns the catalog's regions, sorted.
func (c *Catalog) Regions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	regions := make([]string, 0, len(c.zones))
	for r := range c.zones {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// Suffix returns the zone letter after the region: "a" for "ap-northeast-1a"
// in "ap-northeast-1".
func Suffix(region, zone string) string {
	if len(zone) > len(region) && zone[:len(region)] == region {
		return zone[len(region):]
	}
	return zone
}

// Label returns the last dash-separated segment of zone: "1a" for
// "ap-northeast-1a", "az1" for "use1-az1".
func Label(zone string) string {
	return zone[strings.LastIndex(zone, "-")+1:]
}
