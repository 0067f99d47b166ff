package refdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// Directory caches companies-by-type lookups for the duration of a run, so
// service-provider reconciliation does not refetch the same type list per
// confirmed name.
type Directory struct {
	client assetapi.Client
	cache  *gocache.Cache
}

// NewDirectory creates a Directory with the given cache TTL.
func NewDirectory(client assetapi.Client, ttl time.Duration) *Directory {
	return &Directory{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// CompaniesByType returns the companies of one type, cached.
func (d *Directory) CompaniesByType(ctx context.Context, companyTypeID int) ([]assetapi.Company, error) {
	key := strconv.Itoa(companyTypeID)
	if cached, ok := d.cache.Get(key); ok {
		return cached.([]assetapi.Company), nil
	}

	companies, err := d.client.GetCompaniesByType(ctx, companyTypeID)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key, companies, gocache.DefaultExpiration)
	return companies, nil
}

// MatchCompany finds the first company whose name contains the confirmed
// name, lowercased. The substring test is looser than equality and can match
// more than one directory entry, in which case the first wins.
func MatchCompany(confirmedName string, companies []assetapi.Company) *assetapi.Company {
	needle := strings.ToLower(confirmedName)
	for i := range companies {
		if strings.Contains(strings.ToLower(companies[i].CompanyName), needle) {
			return &companies[i]
		}
	}
	return nil
}
