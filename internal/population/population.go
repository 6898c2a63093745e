// Package population builds the synthetic user base of a tenant: IP pools,
// roles and each user's typical addresses.
package population

import (
	"fmt"
	"strings"

	"vaultsphere/internal/sampling"
	"vaultsphere/internal/schema"
	"vaultsphere/internal/tenant"
)

// PoolKind identifies which IP pool an address came from.
type PoolKind string

const (
	PoolCorporate  PoolKind = "corporate"
	PoolHome       PoolKind = "home"
	PoolSuspicious PoolKind = "suspicious"
	PoolUnknown    PoolKind = "unknown"
)

// SuspiciousPrefixes are the higher-risk origins used for simulation.
var SuspiciousPrefixes = []string{
	"185.220.", "198.98.", "176.10.", "91.219.", "5.188.",
	"46.166.", "194.147.", "89.248.", "178.128.", "159.89.",
}

// homeFirstOctets are residential ISP ranges used for remote workers.
var homeFirstOctets = []int{24, 50, 73, 98, 173, 184, 208}

const (
	corporateTenNet  = 20
	corporateHomeLAN = 15
	homePoolSize     = 100
	perSuspicious    = 5
)

// Pools holds the three disjoint address pools.
type Pools struct {
	Corporate  []string
	Home       []string
	Suspicious []string
}

func octet(src sampling.Source) int {
	return sampling.IntRange(src, 1, 254)
}

// BuildPools draws a fresh set of address pools.
func BuildPools(src sampling.Source) *Pools {
	p := &Pools{}
	for i := 0; i < corporateTenNet; i++ {
		p.Corporate = append(p.Corporate, fmt.Sprintf("10.%d.%d.%d", octet(src), octet(src), octet(src)))
	}
	for i := 0; i < corporateHomeLAN; i++ {
		p.Corporate = append(p.Corporate, fmt.Sprintf("192.168.%d.%d", octet(src), octet(src)))
	}
	for i := 0; i < homePoolSize; i++ {
		first := sampling.Pick(src, homeFirstOctets)
		p.Home = append(p.Home, fmt.Sprintf("%d.%d.%d.%d", first, octet(src), octet(src), octet(src)))
	}
	for _, prefix := range SuspiciousPrefixes {
		for i := 0; i < perSuspicious; i++ {
			p.Suspicious = append(p.Suspicious, fmt.Sprintf("%s%d.%d", prefix, octet(src), octet(src)))
		}
	}
	return p
}

// Classify returns the pool an address belongs to, judged by its prefix.
func Classify(ip string) PoolKind {
	for _, prefix := range SuspiciousPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return PoolSuspicious
		}
	}
	if strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.") {
		return PoolCorporate
	}
	for _, o := range homeFirstOctets {
		if strings.HasPrefix(ip, fmt.Sprintf("%d.", o)) {
			return PoolHome
		}
	}
	return PoolUnknown
}

// RoleWeights is the categorical distribution of user roles.
var RoleWeights = []sampling.Entry[schema.Role]{
	{Value: schema.RoleManager, Weight: 0.15},
	{Value: schema.RoleEmployee, Weight: 0.70},
	{Value: schema.RoleAdmin, Weight: 0.10},
	{Value: schema.RoleGuest, Weight: 0.05},
}

// Share of users that work from the office and get corporate addresses.
const corporateShare = 0.8

// UserProfile is a generation-time description of a synthetic user.
type UserProfile struct {
	UserID     string
	TenantID   int
	Ordinal    int
	Role       schema.Role
	TypicalIPs []string
}

// PickIP returns one of the user's typical addresses, or a corporate address
// if the user has none.
func (u *UserProfile) PickIP(src sampling.Source, pools *Pools) string {
	if len(u.TypicalIPs) == 0 {
		return sampling.Pick(src, pools.Corporate)
	}
	return sampling.Pick(src, u.TypicalIPs)
}

// Population is the user base of one tenant, ordered by user ID.
type Population struct {
	Tenant *tenant.Tenant
	Pools  *Pools
	Users  []*UserProfile
}

// Build creates t.Users profiles for tenant t.
func Build(src sampling.Source, t *tenant.Tenant, pools *Pools) *Population {
	roles := sampling.MustWeighted(RoleWeights)
	p := &Population{
		Tenant: t,
		Pools:  pools,
		Users:  make([]*UserProfile, 0, t.Users),
	}
	for i := 1; i <= t.Users; i++ {
		u := &UserProfile{
			UserID:   schema.FormatUserID(t.ID, i),
			TenantID: t.ID,
			Ordinal:  i,
			Role:     roles.Draw(src),
		}
		if sampling.Bernoulli(src, corporateShare) {
			u.TypicalIPs = sampling.Sample(src, pools.Corporate, 3)
		} else {
			u.TypicalIPs = sampling.Sample(src, pools.Home, 2)
		}
		p.Users = append(p.Users, u)
	}
	return p
}

// NonPrivileged returns the users whose role may not perform the tenant's
// admin-restricted action.
func (p *Population) NonPrivileged() []*UserProfile {
	var out []*UserProfile
	for _, u := range p.Users {
		if !p.Tenant.IsPrivileged(u.Role) {
			out = append(out, u)
		}
	}
	return out
}

// Lookup returns the profile for userID.
func (p *Population) Lookup(userID string) (*UserProfile, bool) {
	for _, u := range p.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return nil, false
}
