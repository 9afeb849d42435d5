// Package mazda implements a client for the MyMazda connected-services API:
// the encrypted/signed application transport, the Azure AD B2C OAuth flow the
// mobile app uses, and the vehicle status and remote-control operations.
package mazda

import "fmt"

// Region selects the connected-services deployment the account lives in.
type Region struct {
	Code        string
	AppCode     string
	BaseURL     string
	UsherURL    string
	Description string
}

var regions = map[string]Region{
	"MNAO": {
		Code:        "MNAO",
		AppCode:     "202007270941270111799",
		BaseURL:     "https://0cxo7m58.mazda.com/prod/",
		UsherURL:    "https://ptznwbh8.mazda.com/appapi/v1/",
		Description: "North America",
	},
	"MME": {
		Code:        "MME",
		AppCode:     "202008100250281064816",
		BaseURL:     "https://e9stj7g7.mazda.com/prod/",
		UsherURL:    "https://rz97suam.mazda.com/appapi/v1/",
		Description: "Europe",
	},
	"MJO": {
		Code:        "MJO",
		AppCode:     "202009170613074283422",
		BaseURL:     "https://wcs9p6wj.mazda.com/prod/",
		UsherURL:    "https://c5ulfwxr.mazda.com/appapi/v1/",
		Description: "Japan",
	},
}

// RegionByCode resolves a region code (MNAO, MME, MJO).
func RegionByCode(code string) (Region, error) {
	r, ok := regions[code]
	if !ok {
		return Region{}, fmt.Errorf("unknown region %q (expected MNAO, MME, or MJO)", code)
	}
	return r, nil
}

// Regions lists the supported region codes.
func Regions() []string {
	return []string{"MNAO", "MME", "MJO"}
}
