package testing

import (
	"fmt"

	"github.com/stretchr/testify/suite"
)

// IgniteTestSuite starts fake nodes sharing one cluster and kills them on demand.
type IgniteTestSuite struct {
	suite.Suite
	cluster *Cluster
	grids   []*FakeNode
}

// Cluster returns the state shared by the started nodes.
func (suite *IgniteTestSuite) Cluster() *Cluster {
	if suite.cluster == nil {
		suite.cluster = NewCluster()
	}
	return suite.cluster
}

// KillAllGrids kills every node and forgets the cluster state.
func (suite *IgniteTestSuite) KillAllGrids() {
	for _, ign := range suite.grids {
		_ = ign.Kill()
	}
	suite.grids = nil
	suite.cluster = nil
}

func (suite *IgniteTestSuite) StartIgnite(opts ...NodeOption) (*FakeNode, error) {
	ign, err := suite.Cluster().StartNode(opts...)
	if err != nil {
		return nil, err
	}
	suite.grids = append(suite.grids, ign)
	return ign, nil
}

func (suite *IgniteTestSuite) GridsCount() int {
	return len(suite.grids)
}

func (suite *IgniteTestSuite) GetIgnite(idx int) *FakeNode {
	if idx >= len(suite.grids) {
		return nil
	}
	return suite.grids[idx]
}

// Addresses returns the addresses of the running nodes.
func (suite *IgniteTestSuite) Addresses() []string {
	res := make([]string, 0, len(suite.grids))
	for _, ign := range suite.grids {
		res = append(res, ign.Addr())
	}
	return res
}

func (suite *IgniteTestSuite) KillIgnite(idx int) error {
	if idx >= len(suite.grids) {
		return fmt.Errorf("index %d exceeds size of started grids %d", idx, len(suite.grids))
	}
	ign := suite.grids[idx]
	defer func() {
		suite.grids = append(suite.grids[:idx], suite.grids[idx+1:]...)
	}()
	return ign.Kill()
}
