package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// RegistrySeed is the fixture loaded into the development asset registry and
// wallet when the API runs without an external chain.
type RegistrySeed struct {
	Treasury  string         `yaml:"treasury"`
	Items     []SeedItem     `yaml:"items"`
	Operators []SeedOperator `yaml:"operators"`
}

type SeedItem struct {
	Asset    string `yaml:"asset"`
	ItemID   string `yaml:"item_id"`
	Owner    string `yaml:"owner"`
	Approved string `yaml:"approved"`
}

type SeedOperator struct {
	Owner    string `yaml:"owner"`
	Operator string `yaml:"operator"`
}

// SeededItem is a validated SeedItem. Approved is the zero address when the
// item carries no per-item approval.
type SeededItem struct {
	Asset    common.Address
	ItemID   uint256.Int
	Owner    common.Address
	Approved common.Address
}

type SeededOperator struct {
	Owner    common.Address
	Operator common.Address
}

// ParsedSeed holds typed seed values. HasTreasury is false when the fixture
// leaves the wallet unlimited.
type ParsedSeed struct {
	Treasury    uint256.Int
	HasTreasury bool
	Items       []SeededItem
	Operators   []SeededOperator
}

// LoadRegistrySeed reads a YAML fixture and expands ${VAR} references before
// decoding it.
func LoadRegistrySeed(path string) (ParsedSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParsedSeed{}, fmt.Errorf("read registry seed: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var seed RegistrySeed
	if err := yaml.Unmarshal([]byte(expanded), &seed); err != nil {
		return ParsedSeed{}, fmt.Errorf("parse registry seed yaml: %w", err)
	}
	parsed, err := seed.Parse()
	if err != nil {
		return ParsedSeed{}, fmt.Errorf("validate registry seed: %w", err)
	}
	return parsed, nil
}

func (s RegistrySeed) Parse() (ParsedSeed, error) {
	var (
		parsed ParsedSeed
		errs   []error
	)

	if s.Treasury != "" {
		if err := parsed.Treasury.SetFromDecimal(s.Treasury); err != nil {
			errs = append(errs, fmt.Errorf("treasury %q: %w", s.Treasury, err))
		} else {
			parsed.HasTreasury = true
		}
	}

	for i, item := range s.Items {
		var seeded SeededItem
		var ok bool
		if seeded.Asset, ok = seedAddress(item.Asset); !ok {
			errs = append(errs, fmt.Errorf("items[%d].asset %q is not a hex address", i, item.Asset))
		}
		if seeded.Owner, ok = seedAddress(item.Owner); !ok {
			errs = append(errs, fmt.Errorf("items[%d].owner %q is not a hex address", i, item.Owner))
		}
		if item.Approved != "" {
			if seeded.Approved, ok = seedAddress(item.Approved); !ok {
				errs = append(errs, fmt.Errorf("items[%d].approved %q is not a hex address", i, item.Approved))
			}
		}
		if err := seeded.ItemID.SetFromDecimal(item.ItemID); err != nil {
			errs = append(errs, fmt.Errorf("items[%d].item_id %q: %w", i, item.ItemID, err))
		}
		parsed.Items = append(parsed.Items, seeded)
	}

	for i, op := range s.Operators {
		owner, ownerOK := seedAddress(op.Owner)
		operator, operatorOK := seedAddress(op.Operator)
		if !ownerOK || !operatorOK {
			errs = append(errs, fmt.Errorf("operators[%d] needs hex owner and operator addresses", i))
			continue
		}
		parsed.Operators = append(parsed.Operators, SeededOperator{Owner: owner, Operator: operator})
	}

	if err := errors.Join(errs...); err != nil {
		return ParsedSeed{}, err
	}
	return parsed, nil
}

func seedAddress(value string) (common.Address, bool) {
	if !common.IsHexAddress(value) {
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}
