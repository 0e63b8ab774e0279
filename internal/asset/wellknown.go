package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum    = 1
	ChainIDBase        = 8453
	ChainIDBaseSepolia = 84532
)

// Well-known token addresses on Base mainnet
var (
	AddrWETHBase = common.HexToAddress("0x4200000000000000000000000000000000000006")
	AddrUSDCBase = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	AddrDAIBase  = common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")
)

// Well-known Base tokens
var (
	WETH = MustNewToken(ChainIDBase, AddrWETHBase, "WETH", 18)
	USDC = MustNewToken(ChainIDBase, AddrUSDCBase, "USDC", 6)
	DAI  = MustNewToken(ChainIDBase, AddrDAIBase, "DAI", 18)
)
