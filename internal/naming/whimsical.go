package naming

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// adjectives and nouns are the fixed word lists whimsical names are drawn
// from uniformly at random (spec.md §3). Kept small and boring on purpose:
// the point is a memorable label, not variety.
var adjectives = []string{
	"amber", "azure", "brave", "bright", "brisk", "bronze", "calm", "candid",
	"cheerful", "clever", "cobalt", "coral", "crimson", "crisp", "curious",
	"dapper", "daring", "dusty", "eager", "earnest", "ebony", "electric",
	"emerald", "fearless", "fleet", "fond", "frosty", "gentle", "giddy",
	"gilded", "golden", "gracious", "grand", "happy", "hasty", "hazy",
	"honest", "humble", "indigo", "ivory", "jade", "jolly", "jovial",
	"keen", "kind", "lively", "loyal", "lucid", "lucky", "mellow",
	"merry", "mighty", "misty", "modest", "mossy", "nimble", "noble",
	"obsidian", "ochre", "olive", "opal", "patient", "peaceful", "pensive",
	"plucky", "polite", "proud", "quaint", "quick", "quiet", "radiant",
	"rapid", "restless", "rosy", "rustic", "sapphire", "scarlet", "serene",
	"shy", "silver", "sincere", "sleepy", "sly", "smooth", "snug",
	"solemn", "spry", "steady", "stealthy", "stoic", "sturdy", "sunny",
	"swift", "tawny", "tender", "thrifty", "tranquil", "trusty", "upbeat",
	"vivid", "warm", "whimsical", "wily", "wise", "witty", "zealous",
}

var nouns = []string{
	"albatross", "antelope", "badger", "barracuda", "beacon", "beaver",
	"bison", "boar", "bobcat", "buffalo", "bumblebee", "camel", "canary",
	"caribou", "cheetah", "chinchilla", "cobra", "condor", "cougar", "coyote",
	"crane", "cricket", "crow", "deer", "dingo", "dolphin", "dragonfly",
	"eagle", "egret", "elk", "falcon", "ferret", "finch", "fox",
	"gazelle", "gecko", "goat", "goldfinch", "goose", "gopher", "grouse",
	"gull", "hare", "hawk", "hedgehog", "heron", "hornet", "hummingbird",
	"hyena", "ibex", "ibis", "iguana", "jackal", "jaguar", "jay",
	"kestrel", "kingfisher", "kiwi", "koala", "lemur", "leopard", "lizard",
	"llama", "lynx", "magpie", "mallard", "manatee", "marmot", "meerkat",
	"mink", "mole", "moose", "moth", "mule", "narwhal", "newt",
	"ocelot", "orca", "osprey", "otter", "owl", "panther", "peacock",
	"pelican", "penguin", "petrel", "pheasant", "platypus", "porcupine",
	"possum", "puffin", "quail", "rabbit", "raccoon", "raven", "salamander",
	"seal", "serval", "shrew", "skunk", "sparrow", "stoat", "swallow",
	"tapir", "tern", "toucan", "vole", "vulture", "wallaby", "walrus",
	"weasel", "wolverine", "wombat", "wren", "yak", "zebra",
}

// GenerateName draws a fresh "<adjective>-<noun>" whimsical name uniformly
// at random from the two fixed word lists (spec.md §3). Randomness uses
// crypto/rand, matching the allocator idiom used elsewhere in this module.
func GenerateName() (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", err
	}
	return adj + "-" + noun, nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("draw random word: %w", err)
	}
	return words[n.Int64()], nil
}
