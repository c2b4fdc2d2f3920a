package tree

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/annel0/treefell/internal/world/block"
)

// Kind результат классификации блока
type Kind int

const (
	KindNone Kind = iota
	KindLog
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindLeaf:
		return "leaf"
	}
	return "none"
}

// MaterialSet неизменяемое множество материалов
type MaterialSet struct {
	m map[block.Material]struct{}
}

// NewMaterialSet создаёт множество из перечисленных материалов
func NewMaterialSet(mats ...block.Material) MaterialSet {
	m := make(map[block.Material]struct{}, len(mats))
	for _, mat := range mats {
		m[mat] = struct{}{}
	}
	return MaterialSet{m: m}
}

// Contains проверяет принадлежность материала множеству
func (s MaterialSet) Contains(m block.Material) bool {
	_, ok := s.m[m]
	return ok
}

// Len возвращает размер множества
func (s MaterialSet) Len() int { return len(s.m) }

// Slice возвращает материалы в порядке возрастания ID
func (s MaterialSet) Slice() []block.Material {
	out := make([]block.Material, 0, len(s.m))
	for m := range s.m {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s MaterialSet) String() string {
	names := make([]string, 0, len(s.m))
	for _, m := range s.Slice() {
		names = append(names, m.String())
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// Ошибки конфигурации пород
var (
	ErrNoLogMaterials    = errors.New("tree: порода без материалов ствола")
	ErrOverlappingSets   = errors.New("tree: материалы ствола и листвы пересекаются")
	ErrDuplicateLogOwner = errors.New("tree: материал ствола принадлежит нескольким породам")
)

// Species описывает породу дерева: какие материалы считаются стволом и листвой
// и что выпадает из листвы при рубке.
type Species struct {
	Name          string
	Logs          MaterialSet
	Leaves        MaterialSet
	Sapling       block.Material // Саженец, выпадающий из листвы (Air - нет)
	SaplingChance float64
	StickChance   float64
	AppleChance   float64
}

// NewSpecies создаёт породу и проверяет, что множества ствола и листвы не пересекаются
func NewSpecies(name string, logs, leaves []block.Material) (*Species, error) {
	if len(logs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLogMaterials, name)
	}
	ls := NewMaterialSet(logs...)
	for _, m := range leaves {
		if ls.Contains(m) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrOverlappingSets, name, m)
		}
	}
	return &Species{
		Name:          name,
		Logs:          ls,
		Leaves:        NewMaterialSet(leaves...),
		SaplingChance: 0.05,
		StickChance:   0.02,
	}, nil
}

// Classify относит материал к стволу, листве или ни к чему для этой породы
func (s *Species) Classify(m block.Material) Kind {
	switch {
	case s.Logs.Contains(m):
		return KindLog
	case s.Leaves.Contains(m):
		return KindLeaf
	}
	return KindNone
}

func (s *Species) String() string { return s.Name }

// Classifier находит породу по материалу ствола
type Classifier struct {
	species []*Species
	byLog   map[block.Material]*Species
}

// NewClassifier создаёт классификатор. Материал ствола может принадлежать только одной породе.
func NewClassifier(species ...*Species) (*Classifier, error) {
	c := &Classifier{byLog: make(map[block.Material]*Species)}
	for _, sp := range species {
		for _, m := range sp.Logs.Slice() {
			if owner, ok := c.byLog[m]; ok {
				return nil, fmt.Errorf("%w: %s в %s и %s", ErrDuplicateLogOwner, m, owner.Name, sp.Name)
			}
			c.byLog[m] = sp
		}
		c.species = append(c.species, sp)
	}
	return c, nil
}

// SpeciesFor возвращает породу, которой принадлежит материал ствола
func (c *Classifier) SpeciesFor(m block.Material) (*Species, bool) {
	sp, ok := c.byLog[m]
	return sp, ok
}

// Classify классифицирует материал относительно породы
func (c *Classifier) Classify(m block.Material, sp *Species) Kind {
	if sp == nil {
		return KindNone
	}
	return sp.Classify(m)
}

// Species возвращает зарегистрированные породы
func (c *Classifier) Species() []*Species {
	return append([]*Species(nil), c.species...)
}

func mustSpecies(name string, logs, leaves []block.Material, sapling block.Material, apples float64) *Species {
	sp, err := NewSpecies(name, logs, leaves)
	if err != nil {
		panic(err)
	}
	sp.Sapling = sapling
	sp.AppleChance = apples
	return sp
}

// DefaultSpecies возвращает стандартный набор пород
func DefaultSpecies() []*Species {
	return []*Species{
		mustSpecies("oak", []block.Material{block.OakLog, block.OakWood}, []block.Material{block.OakLeaves, block.AzaleaLeaves}, block.OakSapling, 0.005),
		mustSpecies("spruce", []block.Material{block.SpruceLog}, []block.Material{block.SpruceLeaves}, block.SpruceSapling, 0),
		mustSpecies("birch", []block.Material{block.BirchLog}, []block.Material{block.BirchLeaves}, block.BirchSapling, 0),
		mustSpecies("jungle", []block.Material{block.JungleLog}, []block.Material{block.JungleLeaves}, block.JungleSapling, 0),
		mustSpecies("acacia", []block.Material{block.AcaciaLog}, []block.Material{block.AcaciaLeaves}, block.AcaciaSapling, 0),
		mustSpecies("dark_oak", []block.Material{block.DarkOakLog}, []block.Material{block.DarkOakLeaves}, block.DarkOakSapling, 0.005),
		mustSpecies("mangrove", []block.Material{block.MangroveLog, block.MangroveRoot}, []block.Material{block.MangroveLeaves}, block.MangrovePropagule, 0),
		mustSpecies("cherry", []block.Material{block.CherryLog}, []block.Material{block.CherryLeaves}, block.CherrySapling, 0),
		mustSpecies("crimson", []block.Material{block.CrimsonStem}, []block.Material{block.NetherWartBlock, block.Shroomlight}, block.CrimsonFungus, 0),
		mustSpecies("warped", []block.Material{block.WarpedStem}, []block.Material{block.WarpedWartBlock, block.Shroomlight}, block.WarpedFungus, 0),
	}
}
