package pbs

import (
	"maps"
	"slices"
	"strconv"
)

const (
	NodeTypeCompute  = "compute"
	NodeTypeGPU      = "gpu"
	NodeTypeBigMem   = "bigmem"
	NodeTypeTransfer = "transfer"
	NodeTypeKNL      = "knl"
)

// NodeTypes maps each supported system to its node types and the core count of one node of that type.
var NodeTypes = map[string]map[string]int{
	"jim": {
		NodeTypeCompute:  36,
		NodeTypeGPU:      28,
		NodeTypeBigMem:   32,
		NodeTypeTransfer: 1,
	},
	"topaz": {
		NodeTypeCompute:  36,
		NodeTypeGPU:      28,
		NodeTypeBigMem:   32,
		NodeTypeTransfer: 1,
	},
	"onyx": {
		NodeTypeCompute:  44,
		NodeTypeGPU:      22,
		NodeTypeBigMem:   44,
		NodeTypeTransfer: 1,
		NodeTypeKNL:      64,
	},
	"narwhal": {
		NodeTypeCompute:  128,
		NodeTypeGPU:      128,
		NodeTypeBigMem:   128,
		NodeTypeTransfer: 1,
	},
	"carpenter": {
		NodeTypeCompute:  192,
		NodeTypeGPU:      128,
		NodeTypeBigMem:   192,
		NodeTypeTransfer: 1,
	},
}

// NodeArgs holds the extra select resource requested for specialised node types.
var NodeArgs = map[string]string{
	NodeTypeGPU:    "ngpus",
	NodeTypeBigMem: "bigmem",
	NodeTypeKNL:    "nmics",
}

// Systems returns the supported system names in sorted order.
func Systems() []string {
	return slices.Sorted(maps.Keys(NodeTypes))
}

// NodeTypesFor returns the node types available on system in sorted order.
func NodeTypesFor(system string) []string {
	return slices.Sorted(maps.Keys(NodeTypes[system]))
}

// CoresPerNode returns the core count of one node of nodeType on system.
func CoresPerNode(system, nodeType string) (int, error) {
	if err := ValidateNodeType(system, nodeType); err != nil {
		return 0, err
	}
	return NodeTypes[system][nodeType], nil
}

// Factors returns every positive divisor of n in ascending order.
func Factors(n int) []int {
	if n <= 0 {
		return nil
	}

	var low, high []int
	for i := 1; i*i <= n; i++ {
		if n%i != 0 {
			continue
		}
		low = append(low, i)
		if i != n/i {
			high = append(high, n/i)
		}
	}
	slices.Reverse(high)
	return append(low, high...)
}

func ValidateSystem(system string) error {
	if _, ok := NodeTypes[system]; !ok {
		return &ValidationError{Field: "system", Value: system, Options: Systems()}
	}
	return nil
}

func ValidateNodeType(system, nodeType string) error {
	if err := ValidateSystem(system); err != nil {
		return err
	}
	if _, ok := NodeTypes[system][nodeType]; !ok {
		return &ValidationError{Field: "node_type", Value: nodeType, Options: NodeTypesFor(system)}
	}
	return nil
}

// ValidateProcessesPerNode reports whether ppn evenly divides the core count of the node type.
func ValidateProcessesPerNode(system, nodeType string, ppn int) error {
	cores, err := CoresPerNode(system, nodeType)
	if err != nil {
		return err
	}

	factors := Factors(cores)
	if slices.Contains(factors, ppn) {
		return nil
	}

	options := make([]string, len(factors))
	for i, f := range factors {
		options[i] = strconv.Itoa(f)
	}
	return &ValidationError{Field: "processes_per_node", Value: strconv.Itoa(ppn), Options: options}
}
