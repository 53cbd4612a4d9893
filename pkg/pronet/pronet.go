package pronet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	Monitor     = 10000
	PowerSample = 0.75
)

var (
	// ErrShapeMismatch is returned when the edge list and the edge weights
	// are not aligned by position.
	ErrShapeMismatch = errors.New("pronet: edge list and weights differ in length")
	// ErrVertexRange is returned when an edge endpoint is outside [0, n).
	ErrVertexRange = errors.New("pronet: vertex index out of range")
	// ErrNegativeWeight is returned for edges carrying a negative weight.
	ErrNegativeWeight = errors.New("pronet: negative edge weight")
)

// Edge is a directed (source, target) pair of vertex ids
type Edge struct {
	Source int64
	Target int64
}

// Vertex holds the weighted degrees of a vertex
type Vertex struct {
	OutDegree float64
	InDegree  float64
}

// ProNet is the in-memory network the embedding models train on.
// Once built it is treated as immutable.
type ProNet struct {
	// Hash tables for vertex name mapping
	VertexHash map[string]int64
	VertexKeys []string

	// Edge list and weights, aligned by position
	EdgeList    []Edge
	EdgeWeights []float64

	MaxVid int64

	out io.Writer
}

// NewProNet creates a new ProNet instance
func NewProNet() *ProNet {
	return &ProNet{
		VertexHash: make(map[string]int64),
		VertexKeys: make([]string, 0),
		out:        os.Stdout,
	}
}

// FromEdges builds a network over n vertices from in-memory arrays.
// Vertices are named by their decimal id.
func FromEdges(n int64, edges []Edge, weights []float64) (*ProNet, error) {
	if len(edges) != len(weights) {
		return nil, fmt.Errorf("%w: %d edges, %d weights", ErrShapeMismatch, len(edges), len(weights))
	}
	pn := NewProNet()
	for vid := int64(0); vid < n; vid++ {
		pn.getOrCreateVertex(strconv.FormatInt(vid, 10))
	}
	for i, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			return nil, fmt.Errorf("%w: edge %d (%d, %d) with %d vertices", ErrVertexRange, i, e.Source, e.Target, n)
		}
		if weights[i] < 0 {
			return nil, fmt.Errorf("%w: edge %d has weight %g", ErrNegativeWeight, i, weights[i])
		}
	}
	pn.EdgeList = append([]Edge(nil), edges...)
	pn.EdgeWeights = append([]float64(nil), weights...)
	return pn, nil
}

// SetOutput redirects the loader's console reporting
func (pn *ProNet) SetOutput(w io.Writer) {
	pn.out = w
}

// LoadEdgeList loads the network from edge list file
func (pn *ProNet) LoadEdgeList(filename string, undirected bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	fmt.Fprintln(pn.out, "Loading network from:", filename)
	return pn.ReadEdgeList(file, undirected)
}

// ReadEdgeList reads "source target weight" lines from r
func (pn *ProNet) ReadEdgeList(r io.Reader, undirected bool) error {
	scanner := bufio.NewScanner(r)
	lineCount := int64(0)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			continue
		}

		weight, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			fmt.Fprintf(pn.out, "Warning: invalid weight at line %d\n", lineNo)
			continue
		}
		if weight < 0 {
			return fmt.Errorf("%w: line %d", ErrNegativeWeight, lineNo)
		}

		vid1 := pn.getOrCreateVertex(parts[0])
		vid2 := pn.getOrCreateVertex(parts[1])

		pn.EdgeList = append(pn.EdgeList, Edge{Source: vid1, Target: vid2})
		pn.EdgeWeights = append(pn.EdgeWeights, weight)
		if undirected {
			pn.EdgeList = append(pn.EdgeList, Edge{Source: vid2, Target: vid1})
			pn.EdgeWeights = append(pn.EdgeWeights, weight)
		}

		lineCount++
		if lineCount%Monitor == 0 {
			fmt.Fprintf(pn.out, "\r\t# of connections: %d", lineCount)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading edge list: %w", err)
	}

	fmt.Fprintf(pn.out, "\r\t# of connections: %d\n", lineCount)

	fmt.Fprintf(pn.out, "Graph loaded: %d vertices, %d edges\n", pn.MaxVid, len(pn.EdgeList))
	return nil
}

// getOrCreateVertex gets or creates a vertex ID
func (pn *ProNet) getOrCreateVertex(name string) int64 {
	if vid, exists := pn.VertexHash[name]; exists {
		return vid
	}

	vid := int64(len(pn.VertexKeys))
	pn.VertexHash[name] = vid
	pn.VertexKeys = append(pn.VertexKeys, name)
	pn.MaxVid = vid + 1

	return vid
}

// VertexDegrees sums edge weights into the out/in degrees of n vertices
func VertexDegrees(n int64, edges []Edge, weights []float64) []Vertex {
	vertices := make([]Vertex, n)
	for i, e := range edges {
		vertices[e.Source].OutDegree += weights[i]
		vertices[e.Target].InDegree += weights[i]
	}
	return vertices
}

// NumVertices returns N, the number of distinct vertices
func (pn *ProNet) NumVertices() int64 { return pn.MaxVid }

// NumEdges returns the length of the edge list
func (pn *ProNet) NumEdges() int { return len(pn.EdgeList) }

// Edges returns the edge list. Callers must not modify it.
func (pn *ProNet) Edges() []Edge { return pn.EdgeList }

// Weights returns the edge weights aligned with Edges. Callers must not modify it.
func (pn *ProNet) Weights() []float64 { return pn.EdgeWeights }

// GetVertexName returns the name of a vertex by ID
func (pn *ProNet) GetVertexName(vid int64) string {
	if vid < 0 || vid >= int64(len(pn.VertexKeys)) {
		return ""
	}
	return pn.VertexKeys[vid]
}

// Adjacency returns the N x N weighted adjacency matrix of the network.
// Parallel edges are summed. The matrix is a sparse view; it is never
// materialised densely.
func (pn *ProNet) Adjacency() mat.Matrix {
	adj := &adjacency{
		n:       int(pn.MaxVid),
		weights: make(map[Edge]float64, len(pn.EdgeList)),
	}
	for i, e := range pn.EdgeList {
		adj.weights[e] += pn.EdgeWeights[i]
	}
	return adj
}

type adjacency struct {
	n       int
	weights map[Edge]float64
}

func (a *adjacency) Dims() (r, c int) { return a.n, a.n }

func (a *adjacency) At(i, j int) float64 {
	if i < 0 || i >= a.n {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= a.n {
		panic(mat.ErrColAccess)
	}
	return a.weights[Edge{Source: int64(i), Target: int64(j)}]
}

func (a *adjacency) T() mat.Matrix { return mat.Transpose{Matrix: a} }
