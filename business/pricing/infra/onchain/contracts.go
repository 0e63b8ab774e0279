package onchain

// FactoryABI covers both factory flavours: Uniswap V2 getPair and Solidly getPool(stable).
const FactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "pair", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "bool", "name": "stable", "type": "bool"}
		],
		"name": "getPool",
		"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PairABI is the subset of a constant-product pool used for spot prices.
// Reserves are declared uint256 so V2 (uint112, uint32) and Solidly (uint256) pools decode alike.
const PairABI = `[
	{
		"inputs": [],
		"name": "token0",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token1",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint256", "name": "reserve0", "type": "uint256"},
			{"internalType": "uint256", "name": "reserve1", "type": "uint256"},
			{"internalType": "uint256", "name": "blockTimestampLast", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
