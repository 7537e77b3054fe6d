package runtime

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	randomPrefix = "random."
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	firstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda",
		"William", "Elizabeth", "David", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
		"Thomas", "Sarah", "Charles", "Karen", "Daniel", "Nancy", "Matthew", "Lisa",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson", "Anderson", "Thomas", "Taylor",
		"Moore", "Jackson", "Martin", "Lee", "Thompson", "White", "Harris", "Clark",
	}
	streetNames  = []string{"Main", "Oak", "Pine", "Maple", "Cedar", "Elm", "Washington", "Lake", "Hill", "Park"}
	streetSuffix = []string{"St", "Ave", "Blvd", "Rd", "Ln", "Dr", "Ct", "Way"}
	cities       = []string{"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton", "Fairview", "Salem", "Madison", "Georgetown"}
	states       = []string{"AL", "AZ", "CA", "CO", "FL", "GA", "IL", "MA", "MI", "NC", "NJ", "NY", "OH", "PA", "TX", "VA", "WA"}
	emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "icloud.com", "proton.me"}
)

// resolveRandom answers the random.* placeholder namespace.
func resolveRandom(name string) (string, bool) {
	if !strings.HasPrefix(name, randomPrefix) {
		return "", false
	}
	rest := name[len(randomPrefix):]

	switch rest {
	case "uuid":
		return uuid.NewString(), true
	case "email":
		return RandomEmail(), true
	case "phone":
		return RandomPhone(), true
	case "string":
		return RandomString(16), true
	case "number":
		return strconv.FormatInt(RandomNumber(0, 100), 10), true
	case "name.first":
		return pick(firstNames), true
	case "name.last":
		return pick(lastNames), true
	case "name.full":
		return pick(firstNames) + " " + pick(lastNames), true
	case "address.street":
		return fmt.Sprintf("%d %s %s", rand.IntN(9899)+100, pick(streetNames), pick(streetSuffix)), true
	case "address.city":
		return pick(cities), true
	case "address.state":
		return pick(states), true
	case "address.zip":
		return fmt.Sprintf("%05d", rand.IntN(99000)+1000), true
	}

	if n, ok := strings.CutPrefix(rest, "string."); ok {
		size, err := strconv.Atoi(n)
		if err != nil || size < 0 {
			size = 16
		}
		return RandomString(size), true
	}
	if params, ok := strings.CutPrefix(rest, "number."); ok {
		lo, hi := int64(0), int64(100)
		minStr, maxStr, _ := strings.Cut(params, ".")
		if v, err := strconv.ParseInt(minStr, 10, 64); err == nil {
			lo = v
		}
		if v, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			hi = v
		}
		return strconv.FormatInt(RandomNumber(lo, hi), 10), true
	}

	return "", false
}

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}

// RandomString returns n alphanumeric characters.
func RandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b)
}

// RandomNumber samples uniformly from [lo, hi]. Reversed bounds are swapped.
func RandomNumber(lo, hi int64) int64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return int64(rand.Uint64())
	}
	return lo + int64(rand.Uint64N(span))
}

func RandomEmail() string {
	user := strings.ToLower(pick(firstNames)) + "." + strings.ToLower(pick(lastNames))
	return fmt.Sprintf("%s%d@%s", user, rand.IntN(1000), pick(emailDomains))
}

func RandomPhone() string {
	return fmt.Sprintf("+1%03d%03d%04d", rand.IntN(800)+200, rand.IntN(900)+100, rand.IntN(10000))
}
